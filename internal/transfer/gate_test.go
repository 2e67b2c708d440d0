package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubSender records requests and returns a fixed hash or error.
type stubSender struct {
	mu      sync.Mutex
	calls   int
	lastReq SendRequest
	hash    string
	err     error
	block   chan struct{} // when non-nil, Send blocks until closed
}

func (s *stubSender) Send(_ context.Context, req SendRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.hash, s.err
}

const (
	evmFrom = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	evmTo   = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

func TestGate_PressCollectsPIN(t *testing.T) {
	g := NewGate(&stubSender{}, nil)

	for _, d := range []byte{'1', '2', '3'} {
		if g.Press(d) {
			t.Error("PIN should not be complete yet")
		}
	}
	if !g.Press('4') {
		t.Error("PIN should be complete at 4 digits")
	}
	if g.PIN() != "1234" {
		t.Errorf("PIN = %q", g.PIN())
	}

	// Extra presses and non-digits are ignored.
	g.Press('5')
	g.Press('x')
	if g.PIN() != "1234" {
		t.Errorf("PIN = %q after overflow presses", g.PIN())
	}

	g.Backspace()
	if g.PIN() != "123" {
		t.Errorf("PIN = %q after backspace", g.PIN())
	}
	g.Reset()
	if g.PIN() != "" {
		t.Errorf("PIN = %q after reset", g.PIN())
	}
}

func TestGate_SendNormalizesAddresses(t *testing.T) {
	sender := &stubSender{hash: "0xhash"}
	g := NewGate(sender, nil)

	hash, err := g.Send(context.Background(), SendRequest{
		Chain:       "ethereum",
		Network:     "mainnet",
		FromAddress: evmFrom,
		ToAddress:   evmTo,
		Amount:      0.001,
		PIN:         "1234",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if hash != "0xhash" {
		t.Errorf("hash = %q", hash)
	}

	// Addresses reach the collaborator in checksummed form.
	if sender.lastReq.FromAddress != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Errorf("from = %s", sender.lastReq.FromAddress)
	}
	if sender.lastReq.ToAddress != "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359" {
		t.Errorf("to = %s", sender.lastReq.ToAddress)
	}
}

func TestGate_SendRejectsBadPIN(t *testing.T) {
	sender := &stubSender{}
	g := NewGate(sender, nil)

	for _, pin := range []string{"", "123", "12345", "12a4"} {
		_, err := g.Send(context.Background(), SendRequest{Chain: "ethereum", FromAddress: evmFrom, ToAddress: evmTo, PIN: pin})
		if !errors.Is(err, ErrPINIncomplete) {
			t.Errorf("PIN %q: err = %v, want ErrPINIncomplete", pin, err)
		}
	}
	if sender.calls != 0 {
		t.Error("sender must not be invoked with a bad PIN")
	}
}

func TestGate_SendAbortsOnInvalidAddress(t *testing.T) {
	sender := &stubSender{}
	g := NewGate(sender, nil)

	_, err := g.Send(context.Background(), SendRequest{
		Chain:       "ethereum",
		FromAddress: "not-an-address",
		ToAddress:   evmTo,
		PIN:         "1234",
	})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
	if sender.calls != 0 {
		t.Error("normalization failure must abort before the network call")
	}
}

func TestGate_SingleFlight(t *testing.T) {
	block := make(chan struct{})
	sender := &stubSender{hash: "0xhash", block: block}
	g := NewGate(sender, nil)

	req := SendRequest{Chain: "ethereum", FromAddress: evmFrom, ToAddress: evmTo, PIN: "1234"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := g.Send(context.Background(), req); err != nil {
			t.Errorf("first Send failed: %v", err)
		}
	}()

	// Wait for the first send to reach the collaborator.
	for {
		sender.mu.Lock()
		calls := sender.calls
		sender.mu.Unlock()
		if calls == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := g.Send(context.Background(), req); !errors.Is(err, ErrSendInFlight) {
		t.Errorf("second Send err = %v, want ErrSendInFlight", err)
	}

	close(block)
	wg.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.calls != 1 {
		t.Errorf("collaborator invoked %d times, want 1", sender.calls)
	}
}
