//go:build integration

package integration

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/inpatient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
)

func (f *facility) bed(t *testing.T, ward, number string, price float64) *inpatient.Bed {
	t.Helper()
	w := &inpatient.Ward{Name: ward}
	require.NoError(t, f.inpatient.CreateWard(f.ctx, w))
	b := &inpatient.Bed{WardID: w.ID, BedNumber: number, PricePerDay: price}
	require.NoError(t, f.inpatient.CreateBed(f.ctx, b))
	return b
}

func TestInpatient_AdmitAndDischargeOnPostgres(t *testing.T) {
	f := newFacility(t)
	p := f.patient(t, "Sunita Patel", "9500000000")
	b := f.bed(t, "General", "G-01", 1200)

	a, err := f.inpatient.Admit(f.ctx, inpatient.AdmitRequest{PatientID: p.ID, BedID: b.ID, Reason: "Observation"})
	require.NoError(t, err)
	assert.Equal(t, inpatient.AdmissionAdmitted, a.Status)

	bed, err := f.inpatient.GetBed(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, inpatient.BedOccupied, bed.Status)

	_, err = f.inpatient.Admit(f.ctx, inpatient.AdmitRequest{PatientID: p.ID, BedID: b.ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	d, err := f.inpatient.FinalizeDischarge(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Summary.TotalDays)
	assert.InDelta(t, 1200+500, d.Summary.GrandTotal, 0.001)
	require.NotNil(t, d.Admission.InvoiceID)

	invoices, err := f.billing.ListByAdmission(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, billing.BillIPD, invoices[0].BillType)
	assert.Equal(t, *d.Admission.InvoiceID, invoices[0].ID)

	bed, err = f.inpatient.GetBed(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, inpatient.BedCleaning, bed.Status)

	_, err = f.inpatient.FinalizeDischarge(f.ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.inpatient.MarkBedClean(f.ctx, b.ID)
	require.NoError(t, err)
	census, err := f.inpatient.Census(f.ctx)
	require.NoError(t, err)
	require.Len(t, census, 1)
	assert.Equal(t, 1, census[0].ByStatus[inpatient.BedAvailable])
}

func TestInpatient_ConcurrentAdmissionsClaimBedOnce(t *testing.T) {
	f := newFacility(t)
	b := f.bed(t, "ICU", "ICU-1", 5000)

	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		ids = append(ids, f.patient(t, "ICU Patient", fmt.Sprintf("96000000%02d", i)).ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.inpatient.Admit(f.ctx, inpatient.AdmitRequest{PatientID: id, BedID: b.ID})
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
	assert.Equal(t, 1, ok)

	admitted, err := f.inpatient.ListAdmissions(f.ctx, inpatient.AdmissionAdmitted)
	require.NoError(t, err)
	assert.Len(t, admitted, 1)
}

func TestInpatient_DuplicateBedNumberRejected(t *testing.T) {
	f := newFacility(t)
	b := f.bed(t, "Maternity", "M-1", 900)

	err := f.inpatient.CreateBed(f.ctx, &inpatient.Bed{WardID: b.WardID, BedNumber: "M-1", PricePerDay: 900})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
