package visit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/diagnostics"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/patient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/pharmacy"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/practitioner"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/notification"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/sequence"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/websocket"
)

type PatientLookup interface {
	GetActive(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*practitioner.Doctor, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev websocket.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Notification, error)
}

type Metrics interface {
	VisitTransition(from, to string)
	Notification(template string, err error)
}

// Settings carries the tariff and queue tuning the workflow needs.
type Settings struct {
	DefaultConsultationFee float64
	RegistrationFee        float64
	AvgConsultMinutes      int
}

// Deps wires a Workflow. Events, Notifier and Metrics are optional.
type Deps struct {
	Visits   Repository
	Records  RecordRepository
	Patients PatientLookup
	Doctors  DoctorLookup
	Labs     *diagnostics.Service
	Pharmacy *pharmacy.Service
	Billing  *billing.Service
	Seq      sequence.Generator
	Tx       db.Transactor
	Events   Publisher
	Notifier Notifier
	Metrics  Metrics
	Logger   zerolog.Logger
	Settings Settings
}

// Workflow executes visit commands. Each command validates the visit status,
// writes the visit and its satellite records in one transaction, and after
// commit publishes status events and patient notifications.
type Workflow struct {
	visits   Repository
	records  RecordRepository
	patients PatientLookup
	doctors  DoctorLookup
	labs     *diagnostics.Service
	pharmacy *pharmacy.Service
	billing  *billing.Service
	seq      sequence.Generator
	tx       db.Transactor
	events   Publisher
	notifier Notifier
	metrics  Metrics
	logger   zerolog.Logger
	settings Settings
	now      func() time.Time
}

func NewWorkflow(d Deps) *Workflow {
	return &Workflow{
		visits:   d.Visits,
		records:  d.Records,
		patients: d.Patients,
		doctors:  d.Doctors,
		labs:     d.Labs,
		pharmacy: d.Pharmacy,
		billing:  d.Billing,
		seq:      d.Seq,
		tx:       d.Tx,
		events:   d.Events,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
		settings: d.Settings,
		now:      time.Now,
	}
}

type expectedVersionKey struct{}

// WithExpectedVersion makes the next command on ctx fail with ErrConflict
// unless the visit is still at version.
func WithExpectedVersion(ctx context.Context, version int) context.Context {
	return context.WithValue(ctx, expectedVersionKey{}, version)
}

// ---------- command plumbing ----------

type transition struct {
	from, to string
}

type message struct {
	template  string
	recipient string
	data      map[string]string
}

// effects collects what a command does so it can be announced after commit.
type effects struct {
	transitions []transition
	touched     map[uuid.UUID]*Visit
	messages    []message
}

func (fx *effects) touch(v *Visit) {
	if fx.touched == nil {
		fx.touched = make(map[uuid.UUID]*Visit)
	}
	fx.touched[v.ID] = v
}

func (fx *effects) notify(template, recipient string, data map[string]string) {
	if recipient == "" {
		return
	}
	fx.messages = append(fx.messages, message{template: template, recipient: recipient, data: data})
}

func (w *Workflow) run(ctx context.Context, fn func(ctx context.Context, fx *effects) error) error {
	fx := &effects{}
	if err := w.tx.WithinTx(ctx, func(ctx context.Context) error { return fn(ctx, fx) }); err != nil {
		return err
	}
	w.flush(ctx, fx)
	return nil
}

func (w *Workflow) flush(ctx context.Context, fx *effects) {
	if w.metrics != nil {
		for _, t := range fx.transitions {
			w.metrics.VisitTransition(t.from, t.to)
		}
	}
	for _, v := range fx.touched {
		w.publish(ctx, v)
	}
	for _, m := range fx.messages {
		w.send(ctx, m)
	}
}

type visitEvent struct {
	VisitID     uuid.UUID `json:"visit_id"`
	VisitNumber string    `json:"visit_number"`
	PatientName string    `json:"patient_name"`
	Department  string    `json:"department"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	QueueToken  string    `json:"queue_token,omitempty"`
}

func (w *Workflow) publish(ctx context.Context, v *Visit) {
	if w.events == nil {
		return
	}
	data := visitEvent{
		VisitID: v.ID, VisitNumber: v.VisitNumber, PatientName: v.PatientName, Department: v.Department,
		Status: v.Status, Priority: v.Priority, QueueToken: v.QueueToken,
	}
	for _, topic := range []string{websocket.VisitTopic(v.ID.String()), websocket.QueueTopic(departmentKey(v.Department))} {
		ev, err := websocket.NewEvent("visit.status", topic, v.ID.String(), data)
		if err == nil {
			err = w.events.Publish(ctx, ev)
		}
		if err != nil {
			w.logger.Warn().Err(err).Str("visit_id", v.ID.String()).Str("topic", topic).Msg("publish visit event")
		}
	}
}

func (w *Workflow) send(ctx context.Context, m message) {
	if w.notifier == nil {
		return
	}
	_, err := w.notifier.Notify(ctx, m.template, m.recipient, m.data)
	if w.metrics != nil {
		w.metrics.Notification(m.template, err)
	}
	if err != nil {
		w.logger.Warn().Err(err).Str("template", m.template).Msg("patient notification failed")
	}
}

func (w *Workflow) clock() time.Time {
	return w.now().UTC()
}

func (w *Workflow) load(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := w.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if want, ok := ctx.Value(expectedVersionKey{}).(int); ok && want != v.VersionID {
		return nil, apperr.Conflict("visit", id)
	}
	return v, nil
}

// move changes the visit status in memory and records the history row.
func (w *Workflow) move(ctx context.Context, fx *effects, v *Visit, to string) error {
	if !CanTransition(v.Status, to) {
		return apperr.InvalidState("visit %s cannot move from %s to %s", v.VisitNumber, v.Status, to)
	}
	now := w.clock()
	sc := &StatusChange{VisitID: v.ID, FromStatus: v.Status, ToStatus: to, Actor: auth.ActorFromContext(ctx), ChangedAt: now}
	if err := w.visits.AddStatusChange(ctx, sc); err != nil {
		return err
	}
	fx.transitions = append(fx.transitions, transition{from: v.Status, to: to})
	v.Status = to
	return nil
}

func (w *Workflow) save(ctx context.Context, fx *effects, v *Visit) error {
	if now := w.clock(); now.After(v.UpdatedAt) {
		v.UpdatedAt = now
	}
	if err := w.visits.Update(ctx, v); err != nil {
		return err
	}
	fx.touch(v)
	return nil
}

// rederive recomputes a post-consultation status from the visit's lab
// requests, consultation and invoices. It reports whether the status changed.
func (w *Workflow) rederive(ctx context.Context, fx *effects, v *Visit) (bool, error) {
	if !postConsultation(v.Status) {
		return false, nil
	}
	labsOpen, err := w.labs.HasOpenRequests(ctx, v.ID)
	if err != nil {
		return false, err
	}
	c, err := w.records.GetConsultation(ctx, v.ID)
	if err != nil {
		return false, err
	}
	invoicesOpen, err := w.billing.HasPending(ctx, v.ID)
	if err != nil {
		return false, err
	}
	to := DeriveStatus(labsOpen, c.AwaitingPharmacy(), invoicesOpen)
	if to == v.Status {
		return false, nil
	}
	if v.Status == StatusPaid {
		// A paid visit no longer holds the department slot.
		if err := w.ensureNoActiveVisit(ctx, v.PatientID, v.Department, v.ID); err != nil {
			return false, err
		}
	}
	return true, w.move(ctx, fx, v, to)
}

func (w *Workflow) issue(ctx context.Context, v *Visit, billType string, amount float64) error {
	id := v.ID
	return w.billing.Issue(ctx, &billing.Invoice{VisitID: &id, PatientID: v.PatientID, BillType: billType, Amount: amount})
}

// callableBy keeps the visits a doctor may call: their own and unassigned
// ones. A nil doctor keeps everything.
func callableBy(list []*Visit, doctorID *uuid.UUID) []*Visit {
	var out []*Visit
	for _, c := range list {
		if doctorID == nil || c.DoctorID == nil || *c.DoctorID == *doctorID {
			out = append(out, c)
		}
	}
	return out
}

func sortQueue(list []*Visit) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := priorityRank[list[i].Priority], priorityRank[list[j].Priority]
		if pi != pj {
			return pi < pj
		}
		if di, dj := list[i].Date, list[j].Date; !di.Equal(dj) {
			return di.Before(dj)
		}
		return list[i].QueueSequence < list[j].QueueSequence
	})
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// ---------- commands ----------

type BookRequest struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	Department     string     `json:"department"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	Date           string     `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Time           string     `json:"time,omitempty"`
	Type           string     `json:"type,omitempty"`
	ReasonForVisit string     `json:"reason_for_visit,omitempty"`
	Priority       string     `json:"priority,omitempty"`
}

// Book creates a visit in booked status. A patient may hold only one active
// visit per department.
func (w *Workflow) Book(ctx context.Context, req BookRequest) (*Visit, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if req.Type == "" {
		req.Type = TypeWalkIn
	}
	if req.Type != TypeWalkIn && req.Type != TypeOnline {
		return nil, apperr.Validation("invalid visit type: %s", req.Type)
	}
	if req.Priority == "" {
		req.Priority = PriorityRoutine
	}
	if _, ok := priorityRank[req.Priority]; !ok {
		return nil, apperr.Validation("invalid priority: %s", req.Priority)
	}
	now := w.clock()
	date := now.Truncate(24 * time.Hour)
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, apperr.Validation("date must be YYYY-MM-DD")
		}
		date = d
	}
	department := strings.TrimSpace(req.Department)
	if department == "" && req.DoctorID == nil {
		return nil, apperr.Validation("department is required")
	}

	v := &Visit{
		Date:           date,
		Time:           req.Time,
		Type:           req.Type,
		ReasonForVisit: strings.TrimSpace(req.ReasonForVisit),
		Priority:       req.Priority,
		Status:         StatusBooked,
		CreatedAt:      now,
	}
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		p, err := w.patients.GetActive(ctx, req.PatientID)
		if err != nil {
			return err
		}
		v.PatientID, v.PatientName, v.PatientPhone = p.ID, p.Name, p.Phone

		if req.DoctorID != nil {
			d, err := w.doctors.GetDoctor(ctx, *req.DoctorID)
			if err != nil {
				return err
			}
			if !d.Active {
				return apperr.InvalidState("doctor %s is not active", d.Name)
			}
			if department == "" {
				department = d.Department
			} else if !strings.EqualFold(department, d.Department) {
				return apperr.Validation("doctor %s does not work in %s", d.Name, department)
			}
			v.DoctorID, v.DoctorName = &d.ID, d.Name
		}
		v.Department = department

		if err := w.ensureNoActiveVisit(ctx, v.PatientID, department, uuid.Nil); err != nil {
			return err
		}
		n, err := w.seq.Next(ctx, sequence.DailyScope("visit", departmentKey(department), now))
		if err != nil {
			return err
		}
		v.VisitNumber = FormatVisitNumber(department, now, n)
		if err := w.visits.Create(ctx, v); err != nil {
			return err
		}
		fx.transitions = append(fx.transitions, transition{to: StatusBooked})
		fx.touch(v)
		return w.visits.AddStatusChange(ctx, &StatusChange{
			VisitID: v.ID, ToStatus: StatusBooked, Actor: auth.ActorFromContext(ctx), ChangedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (w *Workflow) ensureNoActiveVisit(ctx context.Context, patientID uuid.UUID, department string, except uuid.UUID) error {
	active, err := w.visits.FindActive(ctx, patientID, department)
	if err != nil {
		return err
	}
	for _, a := range active {
		if a.ID != except {
			return apperr.InvalidState("patient already has active visit %s in %s", a.VisitNumber, department)
		}
	}
	return nil
}

// CheckIn admits a booked or cancelled visit. A registration invoice is
// raised the first time when a registration fee is configured.
func (w *Workflow) CheckIn(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if v, err = w.load(ctx, id); err != nil {
			return err
		}
		if err := w.checkIn(ctx, fx, v); err != nil {
			return err
		}
		return w.save(ctx, fx, v)
	})
	return v, err
}

func (w *Workflow) checkIn(ctx context.Context, fx *effects, v *Visit) error {
	if v.Status == StatusCancelled {
		if err := w.ensureNoActiveVisit(ctx, v.PatientID, v.Department, v.ID); err != nil {
			return err
		}
	}
	if err := w.move(ctx, fx, v, StatusCheckedIn); err != nil {
		return err
	}
	if w.settings.RegistrationFee <= 0 {
		return nil
	}
	invoices, err := w.billing.ListByVisit(ctx, v.ID)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		if inv.BillType == billing.BillRegistration {
			return nil
		}
	}
	return w.issue(ctx, v, billing.BillRegistration, w.settings.RegistrationFee)
}

// MarkVitalsPending records that a nurse has opened the chart.
func (w *Workflow) MarkVitalsPending(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return w.simpleMove(ctx, id, StatusVitalsPending)
}

// Cancel is allowed until the patient has been called.
func (w *Workflow) Cancel(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return w.simpleMove(ctx, id, StatusCancelled)
}

// Close archives a fully paid visit and texts the patient the settled total.
func (w *Workflow) Close(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if v, err = w.load(ctx, id); err != nil {
			return err
		}
		if err := w.move(ctx, fx, v, StatusClosed); err != nil {
			return err
		}
		summary, err := w.billing.Summary(ctx, v.ID)
		if err != nil {
			return err
		}
		fx.notify(notification.TemplateVisitBill, v.PatientPhone, map[string]string{
			"patient_name": v.PatientName, "visit_number": v.VisitNumber, "amount": formatAmount(summary.Paid),
		})
		return w.save(ctx, fx, v)
	})
	return v, err
}

func (w *Workflow) simpleMove(ctx context.Context, id uuid.UUID, to string) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if v, err = w.load(ctx, id); err != nil {
			return err
		}
		if err := w.move(ctx, fx, v, to); err != nil {
			return err
		}
		return w.save(ctx, fx, v)
	})
	return v, err
}

// SubmitVitals stores a vitals record. The first capture completes the
// vitals step, checking a booked visit in on the way; later captures before
// the consultation ends only add to the series.
func (w *Workflow) SubmitVitals(ctx context.Context, id uuid.UUID, rec *VitalsRecord) (*VitalsRecord, error) {
	if rec.empty() {
		return nil, apperr.Validation("at least one measurement is required")
	}
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		v, err := w.load(ctx, id)
		if err != nil {
			return err
		}
		advance := false
		switch v.Status {
		case StatusBooked:
			if err := w.checkIn(ctx, fx, v); err != nil {
				return err
			}
			advance = true
		case StatusCheckedIn, StatusVitalsPending:
			advance = true
		case StatusVitalsCompleted, StatusWaitingQueue, StatusCalled, StatusInConsultation:
		default:
			return apperr.InvalidState("cannot record vitals for visit %s in status %s", v.VisitNumber, v.Status)
		}
		rec.VisitID, rec.PatientID = v.ID, v.PatientID
		rec.RecordedBy = auth.ActorFromContext(ctx)
		if err := w.records.AddVitals(ctx, rec); err != nil {
			return err
		}
		if !advance {
			return nil
		}
		if err := w.move(ctx, fx, v, StatusVitalsCompleted); err != nil {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AssignQueue issues the next token of the department for today. The first
// assignment wins; a visit that already holds a token is rejected.
func (w *Workflow) AssignQueue(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if v, err = w.load(ctx, id); err != nil {
			return err
		}
		if v.QueueToken != "" {
			return apperr.InvalidState("visit %s already holds token %s", v.VisitNumber, v.QueueToken)
		}
		if v.Status != StatusVitalsCompleted && v.Status != StatusWaitingQueue {
			return apperr.InvalidState("cannot queue visit %s in status %s", v.VisitNumber, v.Status)
		}
		now := w.clock()
		n, err := w.seq.Next(ctx, sequence.DailyScope("queue", departmentKey(v.Department), now))
		if err != nil {
			return err
		}
		v.QueueToken = FormatToken(v.Department, v.DoctorName, n)
		v.QueueSequence = n
		if v.Status == StatusVitalsCompleted {
			if err := w.move(ctx, fx, v, StatusWaitingQueue); err != nil {
				return err
			}
		}
		if err := w.save(ctx, fx, v); err != nil {
			return err
		}
		pos, err := w.position(ctx, v)
		if err != nil {
			return err
		}
		fx.notify(notification.TemplateQueueToken, v.PatientPhone, map[string]string{
			"patient_name": v.PatientName, "department": v.Department, "token": v.QueueToken,
			"wait_minutes": fmt.Sprint(pos.EstimatedWaitMinutes),
		})
		return nil
	})
	return v, err
}

// CallNext moves the most urgent waiting visit of a department to called.
// With a doctor, only visits for that doctor or for no doctor are considered,
// and an unassigned visit is given to the caller.
func (w *Workflow) CallNext(ctx context.Context, department string, doctorID *uuid.UUID) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		waiting, err := w.visits.ListWaiting(ctx, department, nil)
		if err != nil {
			return err
		}
		candidates := callableBy(waiting, doctorID)
		if len(candidates) == 0 {
			return apperr.NotFound("waiting visit in department", department)
		}
		sortQueue(candidates)
		v = candidates[0]

		if doctorID != nil && v.DoctorID == nil {
			d, err := w.doctors.GetDoctor(ctx, *doctorID)
			if err != nil {
				return err
			}
			v.DoctorID, v.DoctorName = &d.ID, d.Name
		}
		if err := w.move(ctx, fx, v, StatusCalled); err != nil {
			return err
		}
		doctor := v.DoctorName
		if doctor == "" {
			doctor = "the doctor"
		}
		fx.notify(notification.TemplatePatientCalled, v.PatientPhone, map[string]string{
			"patient_name": v.PatientName, "token": v.QueueToken, "doctor_name": doctor,
		})
		return w.save(ctx, fx, v)
	})
	return v, err
}

// StartConsultation opens the chart. From waiting-queue the called hop is
// recorded on the way.
func (w *Workflow) StartConsultation(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v *Visit
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if v, err = w.load(ctx, id); err != nil {
			return err
		}
		switch v.Status {
		case StatusWaitingQueue:
			if v.QueueToken == "" {
				return apperr.InvalidState("visit %s has no queue token", v.VisitNumber)
			}
			if err := w.move(ctx, fx, v, StatusCalled); err != nil {
				return err
			}
		case StatusCalled:
		default:
			return apperr.InvalidState("cannot start consultation for visit %s in status %s", v.VisitNumber, v.Status)
		}
		if err := w.move(ctx, fx, v, StatusInConsultation); err != nil {
			return err
		}
		return w.save(ctx, fx, v)
	})
	return v, err
}

type ConsultationInput struct {
	Diagnosis     string         `json:"diagnosis"`
	Notes         string         `json:"notes,omitempty"`
	Prescriptions []Prescription `json:"prescriptions,omitempty"`
	LabTestIDs    []uuid.UUID    `json:"lab_test_ids,omitempty"`
	Disposition   string         `json:"disposition,omitempty"`
}

// SaveConsultation finishes the encounter: it stores the record, orders the
// labs, bills the consultation and moves the visit to the first outstanding
// step in the order labs, pharmacy, billing.
func (w *Workflow) SaveConsultation(ctx context.Context, id uuid.UUID, in ConsultationInput) (*ConsultationRecord, error) {
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	if in.Diagnosis == "" {
		return nil, apperr.Validation("diagnosis is required")
	}
	if in.Disposition == "" {
		in.Disposition = DispositionCompleted
	}
	if !validDispositions[in.Disposition] {
		return nil, apperr.Validation("invalid disposition: %s", in.Disposition)
	}
	for i, rx := range in.Prescriptions {
		if strings.TrimSpace(rx.DrugName) == "" {
			return nil, apperr.Validation("prescriptions[%d]: drug_name is required", i)
		}
		if rx.Quantity < 0 {
			return nil, apperr.Validation("prescriptions[%d]: quantity must not be negative", i)
		}
	}

	var rec *ConsultationRecord
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		v, err := w.load(ctx, id)
		if err != nil {
			return err
		}
		if v.Status != StatusInConsultation {
			return apperr.InvalidState("visit %s is not in consultation", v.VisitNumber)
		}
		rec = &ConsultationRecord{
			VisitID:       v.ID,
			PatientID:     v.PatientID,
			DoctorName:    v.DoctorName,
			Diagnosis:     in.Diagnosis,
			Notes:         in.Notes,
			Prescriptions: append([]Prescription{}, in.Prescriptions...),
			LabTestIDs:    append([]uuid.UUID{}, in.LabTestIDs...),
			Disposition:   in.Disposition,
		}
		if err := w.records.CreateConsultation(ctx, rec); err != nil {
			return err
		}
		actor := auth.ActorFromContext(ctx)
		for _, testID := range in.LabTestIDs {
			if _, err := w.labs.Order(ctx, v.ID, v.PatientID, testID, actor); err != nil {
				return err
			}
		}

		fee, err := w.consultationFee(ctx, v)
		if err != nil {
			return err
		}
		if fee > 0 {
			if err := w.issue(ctx, v, billing.BillConsultation, fee); err != nil {
				return err
			}
		}

		if err := w.move(ctx, fx, v, StatusConsultationCompleted); err != nil {
			return err
		}
		if _, err := w.rederive(ctx, fx, v); err != nil {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *Workflow) consultationFee(ctx context.Context, v *Visit) (float64, error) {
	if v.DoctorID != nil {
		d, err := w.doctors.GetDoctor(ctx, *v.DoctorID)
		if err != nil {
			return 0, err
		}
		if d.ConsultationFee > 0 {
			return d.ConsultationFee, nil
		}
	}
	return w.settings.DefaultConsultationFee, nil
}

type LabOrderInput struct {
	VisitID   uuid.UUID  `json:"visit_id"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	TestID    uuid.UUID  `json:"test_id"`
}

// CreateLabOrder adds a test to an open visit. After the consultation this
// sends the visit back to orders-pending.
func (w *Workflow) CreateLabOrder(ctx context.Context, in LabOrderInput) (*diagnostics.LabRequest, error) {
	var lr *diagnostics.LabRequest
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		v, err := w.load(ctx, in.VisitID)
		if err != nil {
			return err
		}
		if v.Status == StatusClosed || v.Status == StatusCancelled {
			return apperr.InvalidState("visit %s is %s", v.VisitNumber, v.Status)
		}
		if in.PatientID != nil && *in.PatientID != v.PatientID {
			return apperr.Validation("patient_id does not match the visit")
		}
		if lr, err = w.labs.Order(ctx, v.ID, v.PatientID, in.TestID, auth.ActorFromContext(ctx)); err != nil {
			return err
		}
		changed, err := w.rederive(ctx, fx, v)
		if err != nil || !changed {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// UpdateLabStatus advances a lab request. Completion bills the test and lets
// the visit move on.
func (w *Workflow) UpdateLabStatus(ctx context.Context, requestID uuid.UUID, status, result string) (*diagnostics.LabRequest, error) {
	var lr *diagnostics.LabRequest
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if lr, err = w.labs.Advance(ctx, requestID, status, result); err != nil {
			return err
		}
		v, err := w.load(ctx, lr.VisitID)
		if err != nil {
			return err
		}
		if lr.Status != diagnostics.StatusCompleted {
			return nil
		}
		if lr.Price > 0 {
			if err := w.issue(ctx, v, billing.BillLab, lr.Price); err != nil {
				return err
			}
		}
		fx.notify(notification.TemplateLabResult, v.PatientPhone, map[string]string{
			"patient_name": v.PatientName, "test_name": lr.TestName,
		})
		changed, err := w.rederive(ctx, fx, v)
		if err != nil || !changed {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// Dispense fulfils the consultation's prescriptions. Without explicit lines
// every prescription is dispensed in full, matched to inventory by item id or
// else by drug name. Drugs the pharmacy does not stock are skipped; when none
// is stocked the call fails and the consultation stays undispensed.
func (w *Workflow) Dispense(ctx context.Context, visitID uuid.UUID, lines []pharmacy.DispenseLine) (*pharmacy.DispenseRecord, error) {
	var rec *pharmacy.DispenseRecord
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		v, err := w.load(ctx, visitID)
		if err != nil {
			return err
		}
		if !postConsultation(v.Status) {
			return apperr.InvalidState("cannot dispense for visit %s in status %s", v.VisitNumber, v.Status)
		}
		c, err := w.records.GetConsultation(ctx, v.ID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("consultation for visit", v.ID)
		}
		if c.Dispensed {
			return apperr.InvalidState("medicines for visit %s were already dispensed", v.VisitNumber)
		}
		if len(lines) == 0 {
			if lines, err = w.prescribedLines(ctx, c.Prescriptions); err != nil {
				return err
			}
			if len(lines) == 0 {
				return apperr.Validation("no prescribed drug of visit %s is stocked", v.VisitNumber)
			}
		}
		if rec, err = w.pharmacy.Dispense(ctx, v.ID, v.PatientID, lines, auth.ActorFromContext(ctx)); err != nil {
			return err
		}
		if err := w.records.MarkDispensed(ctx, c.ID); err != nil {
			return err
		}
		if rec.TotalCost > 0 {
			if err := w.issue(ctx, v, billing.BillPharmacy, rec.TotalCost); err != nil {
				return err
			}
		}
		fx.notify(notification.TemplateMedicines, v.PatientPhone, map[string]string{
			"patient_name": v.PatientName, "amount": formatAmount(rec.TotalCost),
		})
		changed, err := w.rederive(ctx, fx, v)
		if err != nil || !changed {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *Workflow) prescribedLines(ctx context.Context, rxs []Prescription) ([]pharmacy.DispenseLine, error) {
	var lines []pharmacy.DispenseLine
	for _, rx := range rxs {
		if rx.Quantity <= 0 {
			continue
		}
		if rx.InventoryItemID != nil {
			lines = append(lines, pharmacy.DispenseLine{InventoryItemID: *rx.InventoryItemID, Quantity: rx.Quantity})
			continue
		}
		item, err := w.pharmacy.FindItemByName(ctx, rx.DrugName)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, pharmacy.DispenseLine{InventoryItemID: item.ID, Quantity: rx.Quantity})
	}
	return lines, nil
}

// ProcessPayment settles one invoice. A visit becomes paid only once none of
// its invoices is pending. It implements billing.Payer.
func (w *Workflow) ProcessPayment(ctx context.Context, invoiceID uuid.UUID, method string) (*billing.Invoice, error) {
	var inv *billing.Invoice
	err := w.run(ctx, func(ctx context.Context, fx *effects) error {
		var err error
		if inv, err = w.billing.Pay(ctx, invoiceID, method); err != nil {
			return err
		}
		if inv.VisitID == nil {
			return nil
		}
		v, err := w.load(ctx, *inv.VisitID)
		if err != nil {
			return err
		}
		changed, err := w.rederive(ctx, fx, v)
		if err != nil || !changed {
			return err
		}
		return w.save(ctx, fx, v)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ---------- queries ----------

func (w *Workflow) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return w.visits.GetByID(ctx, id)
}

func (w *Workflow) List(ctx context.Context, params ListParams) ([]*Visit, int, error) {
	return w.visits.List(ctx, params)
}

func (w *Workflow) History(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := w.visits.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return w.visits.ListStatusChanges(ctx, id)
}

func (w *Workflow) Vitals(ctx context.Context, id uuid.UUID) ([]*VitalsRecord, error) {
	if _, err := w.visits.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return w.records.ListVitals(ctx, id)
}

// NextStep evaluates CalculateNextStep against the visit's current records.
func (w *Workflow) NextStep(ctx context.Context, id uuid.UUID) (string, error) {
	var step string
	err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
		v, err := w.visits.GetByID(ctx, id)
		if err != nil {
			return err
		}
		step, err = w.nextStep(ctx, v)
		return err
	})
	return step, err
}

func (w *Workflow) nextStep(ctx context.Context, v *Visit) (string, error) {
	labs, err := w.labs.ListByVisit(ctx, v.ID)
	if err != nil {
		return "", err
	}
	c, err := w.records.GetConsultation(ctx, v.ID)
	if err != nil {
		return "", err
	}
	invoices, err := w.billing.ListByVisit(ctx, v.ID)
	if err != nil {
		return "", err
	}
	return CalculateNextStep(v, labs, c, invoices), nil
}

// QueuePosition reports where a waiting visit stands and the expected wait.
func (w *Workflow) QueuePosition(ctx context.Context, id uuid.UUID) (*QueuePosition, error) {
	v, err := w.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusWaitingQueue || v.QueueToken == "" {
		return nil, apperr.InvalidState("visit %s is not waiting in a queue", v.VisitNumber)
	}
	return w.position(ctx, v)
}

func (w *Workflow) position(ctx context.Context, v *Visit) (*QueuePosition, error) {
	all, err := w.visits.ListWaiting(ctx, v.Department, nil)
	if err != nil {
		return nil, err
	}
	waiting := callableBy(all, v.DoctorID)
	sortQueue(waiting)
	pos := len(waiting)
	for i, o := range waiting {
		if o.ID == v.ID {
			pos = i + 1
			break
		}
	}
	if pos == 0 {
		pos = 1
	}
	return &QueuePosition{
		VisitID:              v.ID,
		QueueToken:           v.QueueToken,
		Department:           v.Department,
		Position:             pos,
		Ahead:                pos - 1,
		EstimatedWaitMinutes: (pos - 1) * w.settings.AvgConsultMinutes,
	}, nil
}

// Report gathers everything recorded for a visit, for printing at closure.
type Report struct {
	Visit        *Visit                     `json:"visit"`
	History      []*StatusChange            `json:"history"`
	Vitals       []*VitalsRecord            `json:"vitals"`
	Consultation *ConsultationRecord        `json:"consultation,omitempty"`
	LabRequests  []*diagnostics.LabRequest  `json:"lab_requests"`
	Dispenses    []*pharmacy.DispenseRecord `json:"dispenses"`
	Billing      *billing.Summary           `json:"billing"`
	NextStep     string                     `json:"next_step"`
}

func (w *Workflow) Report(ctx context.Context, id uuid.UUID) (*Report, error) {
	r := &Report{}
	err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if r.Visit, err = w.visits.GetByID(ctx, id); err != nil {
			return err
		}
		if r.History, err = w.visits.ListStatusChanges(ctx, id); err != nil {
			return err
		}
		if r.Vitals, err = w.records.ListVitals(ctx, id); err != nil {
			return err
		}
		if r.Consultation, err = w.records.GetConsultation(ctx, id); err != nil {
			return err
		}
		if r.LabRequests, err = w.labs.ListByVisit(ctx, id); err != nil {
			return err
		}
		if r.Dispenses, err = w.pharmacy.ListDispenses(ctx, id); err != nil {
			return err
		}
		if r.Billing, err = w.billing.Summary(ctx, id); err != nil {
			return err
		}
		r.NextStep = CalculateNextStep(r.Visit, r.LabRequests, r.Consultation, r.Billing.Invoices)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Bill totals the visit's invoices.
func (w *Workflow) Bill(ctx context.Context, id uuid.UUID) (*billing.Summary, error) {
	if _, err := w.visits.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return w.billing.Summary(ctx, id)
}
