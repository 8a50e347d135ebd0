package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/schoolfees/internal/models"
	"github.com/mmynk/schoolfees/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "schoolfees-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

// seedFee creates a fee type, structure, student and one assigned fee.
func seedFee(t *testing.T, store *SQLiteStore, student *models.StudentRef) (*models.FeeStructure, *models.StudentFee) {
	t.Helper()
	ctx := context.Background()

	ft := &models.FeeType{Name: "Tuition " + student.Name, IsActive: true}
	if err := store.CreateFeeType(ctx, ft); err != nil {
		t.Fatalf("CreateFeeType failed: %v", err)
	}
	fs := &models.FeeStructure{
		ClassID:          student.ClassID,
		SectionIDs:       []string{"A", "B"},
		AcademicYearID:   "2024",
		InstallmentLabel: "Term 1",
		FeeTypeAmounts:   []models.FeeTypeAmount{{FeeTypeID: ft.ID, Amount: 1000}},
		TotalAmount:      1000,
		DueDates:         []string{"2024-04-10"},
	}
	if err := store.CreateFeeStructure(ctx, fs); err != nil {
		t.Fatalf("CreateFeeStructure failed: %v", err)
	}
	if err := store.CreateStudent(ctx, student); err != nil {
		t.Fatalf("CreateStudent failed: %v", err)
	}
	fee := &models.StudentFee{
		StudentID:      student.ID,
		FeeStructureID: fs.ID,
		AcademicYearID: "2024",
		DueDate:        mustDate(t, "2024-04-10"),
		Status:         models.StatusNotStarted,
		FeeTotalAmount: 1000,
	}
	if err := store.CreateStudentFee(ctx, fee); err != nil {
		t.Fatalf("CreateStudentFee failed: %v", err)
	}
	return fs, fee
}

func TestSQLiteStore_FeeStructures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fs, _ := seedFee(t, store, &models.StudentRef{Name: "Alice", ClassID: "5", SectionID: "A"})

	got, err := store.GetFeeStructure(ctx, fs.ID)
	if err != nil {
		t.Fatalf("GetFeeStructure failed: %v", err)
	}
	if got.InstallmentLabel != "Term 1" || got.TotalAmount != 1000 {
		t.Errorf("unexpected structure %+v", got)
	}
	if len(got.SectionIDs) != 2 || len(got.FeeTypeAmounts) != 1 || len(got.DueDates) != 1 {
		t.Errorf("children not loaded: %+v", got)
	}

	list, err := store.ListFeeStructures(ctx, "2024")
	if err != nil {
		t.Fatalf("ListFeeStructures failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 structure for 2024, got %d", len(list))
	}
	other, err := store.ListFeeStructures(ctx, "2025")
	if err != nil {
		t.Fatalf("ListFeeStructures failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no structures for 2025, got %d", len(other))
	}

	if _, err := store.GetFeeStructure(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_StudentFeesAndPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := &models.StudentRef{Name: "Alice", ClassID: "5", SectionID: "A"}
	fs, fee := seedFee(t, store, alice)

	t.Run("TotalPaid sums active payments", func(t *testing.T) {
		p1 := &models.Payment{StudentFeeID: fee.ID, FeesStructureID: fs.ID, Amount: 300, Mode: models.ModeCash}
		p2 := &models.Payment{StudentFeeID: fee.ID, FeesStructureID: fs.ID, Amount: 200, Mode: models.ModeUPI}
		for _, p := range []*models.Payment{p1, p2} {
			if err := store.CreatePayment(ctx, p); err != nil {
				t.Fatalf("CreatePayment failed: %v", err)
			}
		}
		if err := store.DeactivatePayment(ctx, p2.ID); err != nil {
			t.Fatalf("DeactivatePayment failed: %v", err)
		}

		got, err := store.GetStudentFee(ctx, fee.ID)
		if err != nil {
			t.Fatalf("GetStudentFee failed: %v", err)
		}
		if got.TotalPaid != 300 {
			t.Errorf("TotalPaid = %v, want 300", got.TotalPaid)
		}
		if got.Student == nil || got.Student.Name != "Alice" {
			t.Errorf("student not joined: %+v", got.Student)
		}

		payments, err := store.ListPayments(ctx, storage.PaymentFilter{StudentFeeID: fee.ID})
		if err != nil {
			t.Fatalf("ListPayments failed: %v", err)
		}
		if len(payments) != 1 || payments[0].ID != p1.ID {
			t.Errorf("expected only the active payment, got %d", len(payments))
		}
	})

	t.Run("UpdatePayment rewrites amount", func(t *testing.T) {
		payments, _ := store.ListPayments(ctx, storage.PaymentFilter{StudentFeeID: fee.ID})
		p := payments[0]
		p.Amount = 450
		if err := store.UpdatePayment(ctx, p); err != nil {
			t.Fatalf("UpdatePayment failed: %v", err)
		}
		got, _ := store.GetPayment(ctx, p.ID)
		if got.Amount != 450 {
			t.Errorf("Amount = %v, want 450", got.Amount)
		}
	})

	t.Run("ListStudentFees filters by class and section", func(t *testing.T) {
		bob := &models.StudentRef{Name: "Bob", ClassID: "6", SectionID: "B"}
		seedFee(t, store, bob)

		all, err := store.ListStudentFees(ctx, storage.StudentFeeFilter{AcademicYearID: "2024"})
		if err != nil {
			t.Fatalf("ListStudentFees failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 fees, got %d", len(all))
		}

		fives, _ := store.ListStudentFees(ctx, storage.StudentFeeFilter{AcademicYearID: "2024", ClassID: "5"})
		if len(fives) != 1 || fives[0].StudentID != alice.ID {
			t.Errorf("class filter failed: %d fees", len(fives))
		}

		sectionB, _ := store.ListStudentFees(ctx, storage.StudentFeeFilter{SectionID: "B"})
		if len(sectionB) != 1 || sectionB[0].Student.Name != "Bob" {
			t.Errorf("section filter failed: %d fees", len(sectionB))
		}
	})

	t.Run("UpdateStudentFeeStatus", func(t *testing.T) {
		if err := store.UpdateStudentFeeStatus(ctx, fee.ID, models.StatusPending); err != nil {
			t.Fatalf("UpdateStudentFeeStatus failed: %v", err)
		}
		got, _ := store.GetStudentFee(ctx, fee.ID)
		if got.Status != models.StatusPending {
			t.Errorf("Status = %s, want pending", got.Status)
		}
		if err := store.UpdateStudentFeeStatus(ctx, "missing", models.StatusPaid); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SettlePayment writes payment and status together", func(t *testing.T) {
		p := &models.Payment{StudentFeeID: fee.ID, FeesStructureID: fs.ID, Amount: 550, Mode: models.ModeCard}
		if err := store.SettlePayment(ctx, p, models.StatusPaid); err != nil {
			t.Fatalf("SettlePayment failed: %v", err)
		}
		got, _ := store.GetStudentFee(ctx, fee.ID)
		if got.Status != models.StatusPaid || got.TotalPaid != 1000 {
			t.Errorf("after settle: status %s, paid %v", got.Status, got.TotalPaid)
		}
	})

	t.Run("SettlePayment rolls back on unknown fee", func(t *testing.T) {
		before, _ := store.ListPayments(ctx, storage.PaymentFilter{})
		p := &models.Payment{StudentBusFeeID: "missing-bus", Amount: 10, Mode: models.ModeCash}
		if err := store.SettlePayment(ctx, p, models.StatusPaid); err == nil {
			t.Fatal("expected error for unknown fee")
		}
		after, _ := store.ListPayments(ctx, storage.PaymentFilter{Bus: true})
		if len(after) != 0 {
			t.Errorf("payment leaked from rolled back transaction")
		}
		again, _ := store.ListPayments(ctx, storage.PaymentFilter{})
		if len(again) != len(before) {
			t.Errorf("tuition payments changed: %d -> %d", len(before), len(again))
		}
	})

	t.Run("DeactivateStudentFee hides the fee", func(t *testing.T) {
		if err := store.DeactivateStudentFee(ctx, fee.ID); err != nil {
			t.Fatalf("DeactivateStudentFee failed: %v", err)
		}
		if _, err := store.GetStudentFee(ctx, fee.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after soft delete, got %v", err)
		}
	})
}

func TestSQLiteStore_UnresolvedStudent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, fee := seedFee(t, store, &models.StudentRef{Name: "Alice", ClassID: "5"})
	orphan := &models.StudentFee{
		StudentID:      "no-such-student",
		FeeStructureID: fee.FeeStructureID,
		AcademicYearID: "2024",
		DueDate:        mustDate(t, "2024-05-01"),
		Status:         models.StatusPending,
		FeeTotalAmount: 100,
	}
	if err := store.CreateStudentFee(ctx, orphan); err != nil {
		t.Fatalf("CreateStudentFee failed: %v", err)
	}

	got, err := store.GetStudentFee(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetStudentFee failed: %v", err)
	}
	if got.Student != nil {
		t.Errorf("expected nil student, got %+v", got.Student)
	}
}

func TestSQLiteStore_LateFees(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, fee := seedFee(t, store, &models.StudentRef{Name: "Alice", ClassID: "5"})
	rule := &models.LateFeeRule{ClassIDs: []string{"5", "6"}, AcademicYearID: "2024", Amount: 50}
	if err := store.CreateLateFeeRule(ctx, rule); err != nil {
		t.Fatalf("CreateLateFeeRule failed: %v", err)
	}

	gotRule, err := store.GetLateFeeRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetLateFeeRule failed: %v", err)
	}
	if len(gotRule.ClassIDs) != 2 {
		t.Errorf("expected 2 classes, got %v", gotRule.ClassIDs)
	}

	rec := &models.LateFeeRecord{StudentFeeID: fee.ID, LateFeeRuleID: rule.ID, LateFeeAmount: 50}
	created, err := store.CreateLateFeeRecord(ctx, rec)
	if err != nil || !created {
		t.Fatalf("CreateLateFeeRecord = %v, %v", created, err)
	}
	dup := &models.LateFeeRecord{StudentFeeID: fee.ID, LateFeeRuleID: rule.ID, LateFeeAmount: 50}
	created, err = store.CreateLateFeeRecord(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate CreateLateFeeRecord failed: %v", err)
	}
	if created {
		t.Error("duplicate rule application must be ignored")
	}

	manual := &models.LateFeeRecord{StudentFeeID: fee.ID, LateFeeAmount: 20}
	if _, err := store.CreateLateFeeRecord(ctx, manual); err != nil {
		t.Fatalf("manual CreateLateFeeRecord failed: %v", err)
	}

	if err := store.WaiveLateFee(ctx, manual.ID); err != nil {
		t.Fatalf("WaiveLateFee failed: %v", err)
	}
	records, err := store.ListLateFeeRecords(ctx, fee.ID)
	if err != nil {
		t.Fatalf("ListLateFeeRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	waived := 0
	for _, r := range records {
		if r.IsWaived {
			waived++
		}
	}
	if waived != 1 {
		t.Errorf("expected 1 waived record, got %d", waived)
	}
}

func TestSQLiteStore_BusFees(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := &models.StudentRef{Name: "Alice", ClassID: "5"}
	if err := store.CreateStudent(ctx, alice); err != nil {
		t.Fatalf("CreateStudent failed: %v", err)
	}
	bus := &models.StudentBusFee{
		StudentID:        alice.ID,
		AcademicYearID:   "2024",
		RouteDestination: "North Gate",
		Amount:           600,
		DueDate:          mustDate(t, "2024-04-01"),
		Status:           models.StatusPending,
	}
	if err := store.CreateBusFee(ctx, bus); err != nil {
		t.Fatalf("CreateBusFee failed: %v", err)
	}
	if err := store.CreatePayment(ctx, &models.Payment{StudentBusFeeID: bus.ID, Amount: 250, Mode: models.ModeCash}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	got, err := store.GetBusFee(ctx, bus.ID)
	if err != nil {
		t.Fatalf("GetBusFee failed: %v", err)
	}
	if got.TotalPaidFees != 250 || got.Student == nil {
		t.Errorf("unexpected bus fee %+v", got)
	}

	busPayments, _ := store.ListPayments(ctx, storage.PaymentFilter{Bus: true, StudentBusFeeID: bus.ID})
	if len(busPayments) != 1 {
		t.Errorf("expected 1 bus payment, got %d", len(busPayments))
	}
	tuition, _ := store.ListPayments(ctx, storage.PaymentFilter{})
	if len(tuition) != 0 {
		t.Errorf("bus payment leaked into tuition payments")
	}

	if err := store.UpdateBusFeeStatus(ctx, bus.ID, models.StatusPaid); err != nil {
		t.Fatalf("UpdateBusFeeStatus failed: %v", err)
	}
	list, _ := store.ListBusFees(ctx, "2024")
	if len(list) != 1 || list[0].Status != models.StatusPaid {
		t.Errorf("unexpected bus fee list %+v", list)
	}
}

func TestSQLiteStore_CatalogLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateFeeType(ctx, &models.FeeType{Name: "Lab", IsActive: true}); err != nil {
		t.Fatalf("CreateFeeType failed: %v", err)
	}
	if err := store.CreateFeeType(ctx, &models.FeeType{Name: "Retired", IsActive: false}); err != nil {
		t.Fatalf("CreateFeeType failed: %v", err)
	}
	types, err := store.ListFeeTypes(ctx)
	if err != nil {
		t.Fatalf("ListFeeTypes failed: %v", err)
	}
	if len(types) != 1 || types[0].Name != "Lab" {
		t.Errorf("expected only active fee types, got %+v", types)
	}

	d := &models.DiscountType{Kind: models.DiscountPercentage, Value: 10}
	if err := store.CreateDiscountType(ctx, d); err != nil {
		t.Fatalf("CreateDiscountType failed: %v", err)
	}
	got, err := store.GetDiscountType(ctx, d.ID)
	if err != nil || got.Value != 10 {
		t.Errorf("GetDiscountType = %+v, %v", got, err)
	}
	if err := store.CreateDiscountType(ctx, &models.DiscountType{Kind: "BOGUS", Value: 1}); err == nil {
		t.Error("expected CHECK constraint failure for unknown kind")
	}
}

func TestSQLiteStore_EmptyListsAreNotNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lists := map[string]func() (bool, error){
		"fee types": func() (bool, error) {
			l, err := store.ListFeeTypes(ctx)
			return l == nil, err
		},
		"discount types": func() (bool, error) {
			l, err := store.ListDiscountTypes(ctx)
			return l == nil, err
		},
		"fee structures": func() (bool, error) {
			l, err := store.ListFeeStructures(ctx, "")
			return l == nil, err
		},
		"late fee rules": func() (bool, error) {
			l, err := store.ListLateFeeRules(ctx, "")
			return l == nil, err
		},
		"students": func() (bool, error) {
			l, err := store.ListStudents(ctx)
			return l == nil, err
		},
		"student fees": func() (bool, error) {
			l, err := store.ListStudentFees(ctx, storage.StudentFeeFilter{})
			return l == nil, err
		},
		"bus fees": func() (bool, error) {
			l, err := store.ListBusFees(ctx, "")
			return l == nil, err
		},
		"payments": func() (bool, error) {
			l, err := store.ListPayments(ctx, storage.PaymentFilter{})
			return l == nil, err
		},
		"late fee records": func() (bool, error) {
			l, err := store.ListLateFeeRecords(ctx, "")
			return l == nil, err
		},
	}
	for name, list := range lists {
		isNil, err := list()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if isNil {
			t.Errorf("%s: got nil, want empty slice", name)
		}
	}
}
