package crdtdoc

// SyncMessage wraps the two-step sync handshake spec.md §4.3/§4.1 assumes
// the CRDT library provides, inside the SYNC frame body. A one-byte
// subtype prefixes the payload, mirroring the step1/step2/update trio real
// sync protocols (e.g. y-protocols/sync) use inside a single message kind.
type syncSubtype byte

const (
	SyncStep1  syncSubtype = 0 // server announces its current state to a new peer
	SyncStep2  syncSubtype = 1 // reply carrying whatever the requester was missing
	SyncUpdate syncSubtype = 2 // an incremental update, no reply expected
)

// EncodeSyncStep1 builds the handshake frame body sent to a newly attached
// peer, carrying the actor's current state so the peer can seed itself.
func EncodeSyncStep1(doc Doc) []byte {
	return append([]byte{byte(SyncStep1)}, doc.EncodeStateAsUpdate()...)
}

// EncodeSyncUpdate wraps a raw update for broadcast to peers after a local
// mutation, with no reply expected.
func EncodeSyncUpdate(update []byte) []byte {
	return append([]byte{byte(SyncUpdate)}, update...)
}

// ReadSyncMessage applies an incoming SYNC frame body to doc under origin.
// It returns a non-empty response only for a Step1 message (the reply
// carries the doc's current state back to the requester, per spec.md
// §4.1's "sync step 2 / missing updates"); Step2/Update messages never
// produce a reply. applied carries the raw update bytes that were merged
// (nil if nothing was), so the caller can rebroadcast exactly that payload
// through the CRDT update hook without knowing which sub-kind produced it.
func ReadSyncMessage(doc Doc, body []byte, origin Origin) (response []byte, applied []byte, changed bool, err error) {
	if len(body) < 1 {
		return nil, nil, false, ErrMalformedUpdate
	}
	subtype := syncSubtype(body[0])
	payload := body[1:]

	switch subtype {
	case SyncStep1:
		if len(payload) > 0 {
			changed, err = doc.ApplyUpdate(payload, origin)
			if err != nil {
				return nil, nil, false, err
			}
			if changed {
				applied = payload
			}
		}
		return EncodeSyncUpdate2(doc), applied, changed, nil

	case SyncStep2, SyncUpdate:
		if len(payload) == 0 {
			return nil, nil, false, nil
		}
		changed, err = doc.ApplyUpdate(payload, origin)
		if err != nil {
			return nil, nil, false, err
		}
		if changed {
			applied = payload
		}
		return nil, applied, changed, nil

	default:
		return nil, nil, false, ErrMalformedUpdate
	}
}

// EncodeSyncUpdate2 builds a Step2 reply carrying the current full state.
func EncodeSyncUpdate2(doc Doc) []byte {
	return append([]byte{byte(SyncStep2)}, doc.EncodeStateAsUpdate()...)
}
