package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Entry {
	return Entry{
		Sequence:     7,
		PreviousHash: Hash{1, 2, 3},
		EventType:    EventCredentialVerified,
		Payload:      Payload{KeyCredentialID: "vc_1", KeySubjectID: "subject-1"},
		Timestamp:    time.Date(2024, 3, 1, 9, 0, 0, 123, time.UTC),
	}
}

func TestComputeHash(t *testing.T) {
	base := ComputeHash(sampleEntry())

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, base, ComputeHash(sampleEntry()))
	})

	t.Run("ignores stored entry hash", func(t *testing.T) {
		e := sampleEntry()
		e.EntryHash = Hash{9}
		assert.Equal(t, base, ComputeHash(e))
	})

	t.Run("timestamp location does not matter", func(t *testing.T) {
		e := sampleEntry()
		e.Timestamp = e.Timestamp.In(time.FixedZone("EAT", 3*60*60))
		assert.Equal(t, base, ComputeHash(e))
	})

	mutations := map[string]func(*Entry){
		"sequence":      func(e *Entry) { e.Sequence++ },
		"previous hash": func(e *Entry) { e.PreviousHash[0] ^= 0xff },
		"event type":    func(e *Entry) { e.EventType = EventCredentialRejected },
		"payload value": func(e *Entry) { e.Payload[KeySubjectID] = "subject-2" },
		"payload key":   func(e *Entry) { e.Payload["extra"] = "" },
		"timestamp":     func(e *Entry) { e.Timestamp = e.Timestamp.Add(time.Nanosecond) },
	}
	for name, mutate := range mutations {
		t.Run("changes with "+name, func(t *testing.T) {
			e := sampleEntry()
			mutate(&e)
			assert.NotEqual(t, base, ComputeHash(e))
		})
	}

	t.Run("length prefixes prevent boundary shifts", func(t *testing.T) {
		a := sampleEntry()
		a.Payload = Payload{"ab": "c"}
		b := sampleEntry()
		b.Payload = Payload{"a": "bc"}
		assert.NotEqual(t, ComputeHash(a), ComputeHash(b))
	})
}

func TestHashText(t *testing.T) {
	h := ComputeHash(sampleEntry())
	s := h.String()
	assert.True(t, strings.HasPrefix(s, "sha256:"))
	assert.Len(t, s, len("sha256:")+64)

	parsed, err := ParseHash(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	for _, bad := range []string{"", "md5:00", "sha256:zz", "sha256:abcd"} {
		_, err := ParseHash(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, ZeroHash.IsZero())
	assert.False(t, h.IsZero())
}

func TestEventStatus(t *testing.T) {
	assert.Equal(t, StatusFailed, EventCredentialRejected.Status())
	assert.Equal(t, StatusFailed, EventAuthFailed.Status())
	assert.Equal(t, StatusSuccess, EventConsentDenied.Status())
	assert.Equal(t, StatusSuccess, EventCredentialIssued.Status())
	assert.False(t, EventType("bogus").IsValid())
	assert.True(t, EventConsentExpired.IsValid())
}
