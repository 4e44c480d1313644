package snapshotstore

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func errResponse(code string) error {
	return minio.ErrorResponse{Code: code}
}

func TestClassifyS3ErrorNotFoundIsAbsent(t *testing.T) {
	_, present, err := classifyS3Error("k", errResponse("NoSuchKey"))
	if err != nil || present {
		t.Fatalf("present=%v err=%v, want absent/nil", present, err)
	}
}

func TestClassifyS3ErrorPermissionIsAbsent(t *testing.T) {
	_, present, err := classifyS3Error("k", errResponse("AccessDenied"))
	if err != nil || present {
		t.Fatalf("present=%v err=%v, want absent/nil", present, err)
	}
}

func TestClassifyS3ErrorOtherPropagates(t *testing.T) {
	orig := errors.New("boom")
	_, present, err := classifyS3Error("k", orig)
	if present {
		t.Fatalf("expected present=false")
	}
	if err == nil {
		t.Fatalf("expected the error to propagate")
	}
}

func TestClassifyDeleteErrorTreatsNotFoundAsSuccess(t *testing.T) {
	if err := classifyDeleteError(nil); err != nil {
		t.Fatalf("nil error: got %v", err)
	}
	if err := classifyDeleteError(errResponse("NoSuchKey")); err != nil {
		t.Fatalf("NoSuchKey: got %v, want nil", err)
	}
}

func TestClassifyDeleteErrorPropagatesOther(t *testing.T) {
	orig := errors.New("boom")
	if err := classifyDeleteError(orig); err == nil {
		t.Fatalf("expected the error to propagate")
	}
}
