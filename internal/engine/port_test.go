package engine

import (
	"net"
	"testing"
)

func TestFreePort_SkipsBoundPort(t *testing.T) {
	busy, err := net.Listen("tcp", LoopbackHost+":0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	probe, err := net.Listen("tcp", LoopbackHost+":0")
	if err != nil {
		t.Fatal(err)
	}
	freeCandidate := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	picks := []int{busyPort, busyPort, freeCandidate}
	i := 0
	got, err := freePort(func() int {
		p := picks[i]
		i++
		return p
	})
	if err != nil {
		t.Fatalf("freePort() error = %v", err)
	}
	if got != freeCandidate {
		t.Errorf("freePort() = %d, want %d", got, freeCandidate)
	}
	if i != 3 {
		t.Errorf("picks used = %d, want 3", i)
	}
}

func TestFreePort_GivesUp(t *testing.T) {
	busy, err := net.Listen("tcp", LoopbackHost+":0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	calls := 0
	_, err = freePort(func() int {
		calls++
		return busyPort
	})
	if err == nil {
		t.Fatal("freePort() should fail when every pick is bound")
	}
	if calls != maxPortPicks {
		t.Errorf("picks = %d, want %d", calls, maxPortPicks)
	}
}

func TestRandomPort_Range(t *testing.T) {
	for range 1000 {
		if p := randomPort(); p < portMin || p >= portMax {
			t.Fatalf("randomPort() = %d, out of [%d, %d)", p, portMin, portMax)
		}
	}
}
