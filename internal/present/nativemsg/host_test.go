package nativemsg

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

type mockStatusSource struct {
	status cryptoguard.TabStatus
	err    error
	calls  int
}

func (m *mockStatusSource) GetStatus(ctx context.Context, url string) (cryptoguard.TabStatus, error) {
	m.calls++
	return m.status, m.err
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteMessage(&buf, v); err != nil {
		t.Fatalf("write message: %v", err)
	}
	return buf.Bytes()
}

func readBadges(t *testing.T, r io.Reader) []domain.Badge {
	t.Helper()
	var badges []domain.Badge
	for {
		payload, err := ReadMessage(r)
		if errors.Is(err, io.EOF) {
			return badges
		}
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var badge domain.Badge
		if err := json.Unmarshal(payload, &badge); err != nil {
			t.Fatalf("decode badge: %v", err)
		}
		badges = append(badges, badge)
	}
}

func TestFramingRoundTrip(t *testing.T) {
	raw := frame(t, TabEvent{Type: EventCheck, TabID: 7, URL: "https://example.com"})
	if size := binary.LittleEndian.Uint32(raw[:4]); int(size) != len(raw)-4 {
		t.Fatalf("length prefix %d does not match payload %d", size, len(raw)-4)
	}

	payload, err := ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var event TabEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.TabID != 7 || event.URL != "https://example.com" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestReadMessageRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(MaxMessageSize+1))
	if _, err := ReadMessage(&buf); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected oversize error, got %v", err)
	}
}

func TestServeFlaggedBadge(t *testing.T) {
	source := &mockStatusSource{status: cryptoguard.TabStatus{Domain: "example.com", Flagged: true, Count: 3}}

	var in bytes.Buffer
	in.Write(frame(t, TabEvent{Type: EventUpdated, TabID: 1, URL: "https://example.com", Status: "loading"}))
	in.Write(frame(t, TabEvent{Type: EventUpdated, TabID: 1, URL: "https://example.com", Status: "complete"}))
	in.Write(frame(t, TabEvent{Type: EventActivated, TabID: 2, URL: "https://example.com"}))

	var out bytes.Buffer
	if err := NewHost(source, &in, &out).Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}

	badges := readBadges(t, &out)
	if len(badges) != 2 {
		t.Fatalf("expected 2 badges (loading ignored), got %d", len(badges))
	}
	want := domain.Badge{TabID: 1, Icon: domain.IconFlagged, BadgeText: "3", BadgeColor: domain.BadgeColorFlagged}
	if badges[0] != want {
		t.Fatalf("unexpected badge %+v", badges[0])
	}
	if badges[1].TabID != 2 {
		t.Fatalf("expected second badge for tab 2, got %+v", badges[1])
	}
}

func TestServeFallsBackOnError(t *testing.T) {
	source := &mockStatusSource{err: errors.New("node unreachable")}

	var in bytes.Buffer
	in.Write(frame(t, TabEvent{Type: EventCheck, TabID: 5, URL: "https://example.com"}))

	var out bytes.Buffer
	if err := NewHost(source, &in, &out).Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}

	badges := readBadges(t, &out)
	if len(badges) != 1 {
		t.Fatalf("expected 1 badge, got %d", len(badges))
	}
	if badges[0].Icon != domain.IconDefault || badges[0].BadgeText != "" {
		t.Fatalf("expected unflagged badge, got %+v", badges[0])
	}
}

func TestHandleSkipsUnratableURL(t *testing.T) {
	source := &mockStatusSource{status: cryptoguard.TabStatus{Flagged: true, Count: 1}}
	host := NewHost(source, nil, nil)

	badge, ok := host.Handle(context.Background(), TabEvent{Type: EventCheck, TabID: 9, URL: "chrome://newtab"})
	if !ok || badge.Icon != domain.IconDefault {
		t.Fatalf("expected default badge, got %+v %v", badge, ok)
	}
	if source.calls != 0 {
		t.Fatalf("unratable urls should not reach the node")
	}
}

func TestServeSkipsMalformedFrames(t *testing.T) {
	source := &mockStatusSource{}

	var in bytes.Buffer
	binary.Write(&in, binary.LittleEndian, uint32(3))
	in.WriteString("{{{")
	in.Write(frame(t, TabEvent{Type: EventCheck, TabID: 4, URL: "https://example.com"}))

	var out bytes.Buffer
	if err := NewHost(source, &in, &out).Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if badges := readBadges(t, &out); len(badges) != 1 || badges[0].TabID != 4 {
		t.Fatalf("unexpected badges %+v", badges)
	}
}
