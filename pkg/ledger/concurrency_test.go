package ledger

import (
	"sync"
	"testing"

	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
)

func TestGenerateCycle_ConcurrentCallsGetUniqueSequences(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeDaily)
	f.member(p.ID, "a@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	seqs := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.ledger.GenerateCycle(f.ctx, p.ID, f.owner)
			if err != nil {
				errs <- err
				return
			}
			seqs <- c.Sequence
		}()
	}
	wg.Wait()
	close(errs)
	close(seqs)

	for err := range errs {
		t.Errorf("Concurrent GenerateCycle failed: %v", err)
	}
	seen := make(map[int]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Errorf("Sequence %d handed out twice", seq)
		}
		seen[seq] = true
	}
	for seq := 1; seq <= workers; seq++ {
		if !seen[seq] {
			t.Errorf("Expected sequence %d to be used", seq)
		}
	}

	cycles, err := f.store.ListCycles(f.ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list cycles: %v", err)
	}
	if len(cycles) != workers {
		t.Errorf("Expected %d cycles, got %d", workers, len(cycles))
	}
}

func TestMarkInstallmentPaid_ConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeWeekly)
	member := f.member(p.ID, "borrower@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)
	loan := f.approvedLoan(p.ID, member, 600, nil)
	inst := loan.Installments[0]

	const workers = 10
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok          int
		alreadyPaid int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.MarkInstallmentPaid(f.ctx, inst.ID, f.owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.KindAlreadyPaid):
				alreadyPaid++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || alreadyPaid != workers-1 {
		t.Errorf("Expected 1 success and %d already paid, got %d and %d", workers-1, ok, alreadyPaid)
	}
	got, err := f.store.GetLoan(f.ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	want := loan.TotalPayable.Sub(inst.EMIAmount)
	if !got.RemainingAmount.Equal(want) {
		t.Errorf("Expected remaining %s after one payment, got %s", want, got.RemainingAmount)
	}
	if n := f.auditActions(p.ID)[models.AuditInstallmentPaid]; n != 1 {
		t.Errorf("Expected 1 installment audit entry, got %d", n)
	}
}
