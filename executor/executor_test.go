package executor

import "testing"

func TestDispatchRunsInFIFOOrder(t *testing.T) {
	d := New()
	var order []int
	d.Add("a", func() { order = append(order, 1) })
	d.Add("b", func() { order = append(order, 2) })
	d.Add("c", func() { order = append(order, 3) })

	d.Dispatch()

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestCancelSkipsEntryThisPassOnly(t *testing.T) {
	d := New()
	ran := false
	d.Add("x", func() { ran = true })
	d.Cancel("x")
	d.Dispatch()
	if ran {
		t.Fatal("cancelled entry ran")
	}

	// cancel set is cleared after a pass; the same ctx can run again.
	ran2 := false
	d.Add("x", func() { ran2 = true })
	d.Dispatch()
	if !ran2 {
		t.Fatal("entry queued after the cancelling pass should run")
	}
}

func TestReentrantAddDeferredToNextPass(t *testing.T) {
	d := New()
	var order []string
	d.Add("a", func() {
		order = append(order, "a")
		d.Add("b", func() { order = append(order, "b") })
	})

	d.Dispatch()
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("expected only 'a' to run in the first pass, got %v", order)
	}

	d.Dispatch()
	if len(order) != 2 || order[1] != "b" {
		t.Fatalf("expected 'b' to run in the second pass, got %v", order)
	}
}

func TestNilFnResumesWithoutOverride(t *testing.T) {
	d := New()
	d.Add("noop", nil) // must not panic
	d.Dispatch()
}

func TestLenReflectsQueuedWork(t *testing.T) {
	d := New()
	d.Add("a", nil)
	d.Add("b", nil)
	if d.Len() != 2 {
		t.Fatalf("expected 2 queued entries, got %d", d.Len())
	}
	d.Dispatch()
	if d.Len() != 0 {
		t.Fatalf("expected queue to drain after Dispatch, got %d", d.Len())
	}
}
