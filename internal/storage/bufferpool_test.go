package storage

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/dsnet/golib/memfile"
)

func newTestPool(t *testing.T, capacity, pages int) *BufferPool {
	t.Helper()
	dm := NewDiskManager(memfile.New(nil))
	for i := 0; i < pages; i++ {
		if _, err := dm.AllocPage(); err != nil {
			t.Fatalf("alloc: %v", err)
		}
	}
	return NewBufferPool(dm, capacity)
}

func TestPool_HitReturnsSameFrame(t *testing.T) {
	bp := newTestPool(t, 4, 2)

	g1, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	if g1.Page() != g2.Page() {
		t.Fatal("two fetches of one pid returned distinct frames")
	}
	if pins := g1.f.pins; pins != 2 {
		t.Fatalf("pins=%d want 2", pins)
	}
	g1.Release()
	g2.Release()
	if pins := g1.f.pins; pins != 0 {
		t.Fatalf("pins=%d want 0 after releases", pins)
	}
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	bp := newTestPool(t, 2, 1)
	g, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	g.Release()
	g.Release()
	if pins := bp.frames[bp.findFrame(0)].pins; pins != 0 {
		t.Fatalf("pins=%d want 0", pins)
	}
}

func TestPool_AtMostOneFramePerPage(t *testing.T) {
	bp := newTestPool(t, 4, 3)
	for _, pid := range []PageID{0, 1, 2, 0, 1, 2} {
		g, err := bp.Fetch(pid)
		if err != nil {
			t.Fatal(err)
		}
		g.Release()
	}
	for pid := PageID(0); pid < 3; pid++ {
		n := 0
		for i := range bp.frames {
			if bp.frames[i].valid && bp.frames[i].pageID == pid {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("page %d held by %d frames", pid, n)
		}
	}
}

func TestPool_ExhaustedWhenAllPinned(t *testing.T) {
	bp := newTestPool(t, 2, 3)
	g0, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	g1, err := bp.Fetch(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bp.Fetch(2); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err=%v want ErrPoolExhausted", err)
	}
	// Releasing one pin makes the fetch succeed again.
	g0.Release()
	g2, err := bp.Fetch(2)
	if err != nil {
		t.Fatalf("fetch after release: %v", err)
	}
	g2.Release()
	g1.Release()
}

// TestPool_ClockSecondChance: with C=3 and every refbit set by the initial
// fetches, the first sweep clears all refbits and the second evicts the frame
// at the hand's starting position.
func TestPool_ClockSecondChance(t *testing.T) {
	bp := newTestPool(t, 3, 4)

	var guards []*FrameGuard
	for pid := PageID(0); pid < 3; pid++ {
		g, err := bp.Fetch(pid)
		if err != nil {
			t.Fatal(err)
		}
		guards = append(guards, g)
	}
	for _, g := range guards {
		g.Release()
	}

	g, err := bp.Fetch(3)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()
	if bp.frames[0].pageID != 3 {
		t.Fatalf("frame 0 holds page %d, want victim at initial hand position replaced by 3",
			bp.frames[0].pageID)
	}
	if bp.frames[1].pageID != 1 || bp.frames[2].pageID != 2 {
		t.Fatalf("unexpected frame contents: %d %d", bp.frames[1].pageID, bp.frames[2].pageID)
	}
}

func TestPool_PinnedFrameSurvivesSweep(t *testing.T) {
	bp := newTestPool(t, 2, 3)

	g0, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	g1, err := bp.Fetch(1)
	if err != nil {
		t.Fatal(err)
	}
	g1.Release()

	// Page 0 stays pinned; the victim must be page 1's frame.
	g2, err := bp.Fetch(2)
	if err != nil {
		t.Fatal(err)
	}
	if bp.findFrame(0) < 0 {
		t.Fatal("pinned page 0 was evicted")
	}
	if bp.findFrame(1) >= 0 {
		t.Fatal("unpinned page 1 was not the victim")
	}
	g2.Release()
	g0.Release()
}

func TestPool_DirtyVictimWrittenBackBeforeReplacement(t *testing.T) {
	bp := newTestPool(t, 1, 2)

	g, err := bp.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Page().Insert([]byte("dirty page zero")); err != nil {
		t.Fatal(err)
	}
	g.MarkDirty()
	g.Release()

	// Fetching page 1 with C=1 forces eviction of dirty page 0.
	g1, err := bp.Fetch(1)
	if err != nil {
		t.Fatal(err)
	}
	g1.Release()

	var back Page
	if err := bp.Disk().ReadPage(0, &back); err != nil {
		t.Fatal(err)
	}
	rec, ok := back.Get(0)
	if !ok || string(rec) != "dirty page zero" {
		t.Fatalf("write-back missing: rec=%q ok=%v", rec, ok)
	}
	if bp.Stats().WriteBacks != 1 || bp.Stats().Evictions != 1 {
		t.Fatalf("stats=%+v", bp.Stats())
	}
}

func TestPool_FlushAllClearsDirtyAndMatchesDisk(t *testing.T) {
	bp := newTestPool(t, 4, 3)

	for pid := PageID(0); pid < 3; pid++ {
		g, err := bp.Fetch(pid)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := g.Page().Insert([]byte(fmt.Sprintf("page-%d", pid))); err != nil {
			t.Fatal(err)
		}
		g.MarkDirty()
		g.Release()
	}
	if err := bp.FlushAll(); err != nil {
		t.Fatal(err)
	}

	for i := range bp.frames {
		if bp.frames[i].dirty {
			t.Fatalf("frame %d still dirty after FlushAll", i)
		}
	}
	for pid := PageID(0); pid < 3; pid++ {
		idx := bp.findFrame(pid)
		if idx < 0 {
			t.Fatalf("page %d not resident", pid)
		}
		var back Page
		if err := bp.Disk().ReadPage(pid, &back); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(back.Bytes(), bp.frames[idx].page.Bytes()) {
			t.Fatalf("page %d differs between disk and frame", pid)
		}
	}
}

// TestPool_ScanLargerThanPool: a heap far larger than C scans to completion
// through an 8-frame pool with every fetch succeeding.
func TestPool_ScanLargerThanPool(t *testing.T) {
	dm := NewDiskManager(memfile.New(nil))
	pool := NewBufferPool(dm, DefaultPoolSize)

	hdr, err := dm.AllocPage()
	if err != nil {
		t.Fatal(err)
	}
	first, err := dm.AllocPage()
	if err != nil {
		t.Fatal(err)
	}
	hf, err := BootstrapHeap(pool, hdr, first)
	if err != nil {
		t.Fatal(err)
	}

	const rows = 10000
	for i := 0; i < rows; i++ {
		if _, err := hf.Insert(fillRecord(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := pool.FlushAll(); err != nil {
		t.Fatal(err)
	}

	// Re-scan through a tiny pool: every page is a miss, eviction keeps up.
	small := NewBufferPool(dm, 8)
	hf2, err := OpenHeap(small, hdr)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	sc := hf2.Scan()
	defer sc.Close()
	for sc.Next() {
		n++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan failed mid-way: %v", err)
	}
	if n != rows {
		t.Fatalf("scanned %d rows, want %d", n, rows)
	}
}
