package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/config"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/diagnostics"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/inpatient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/patient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/pharmacy"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/practitioner"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/visit"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/metrics"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/notification"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/sequence"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/websocket"
)

// stores is one storage backend's set of repositories plus the transactor
// and sequence generator that share its consistency boundary.
type stores struct {
	patients    patient.Repository
	doctors     practitioner.Repository
	labTests    diagnostics.LabTestRepository
	labRequests diagnostics.LabRequestRepository
	inventory   pharmacy.InventoryRepository
	dispenses   pharmacy.DispenseRepository
	invoices    billing.InvoiceRepository
	visits      visit.Repository
	records     visit.RecordRepository
	wards       inpatient.WardRepository
	beds        inpatient.BedRepository
	admissions  inpatient.AdmissionRepository
	seq         sequence.Generator
	tx          db.Transactor
	pinger      db.Pinger
	poolStats   func() *db.PoolStats
}

func memoryStores() *stores {
	store := memstore.New()
	return &stores{
		patients:    patient.NewMemRepo(store),
		doctors:     practitioner.NewMemRepo(store),
		labTests:    diagnostics.NewLabTestRepoMem(store),
		labRequests: diagnostics.NewLabRequestRepoMem(store),
		inventory:   pharmacy.NewInventoryRepoMem(store),
		dispenses:   pharmacy.NewDispenseRepoMem(store),
		invoices:    billing.NewInvoiceRepoMem(store),
		visits:      visit.NewVisitRepoMem(store),
		records:     visit.NewRecordRepoMem(store),
		wards:       inpatient.NewWardRepoMem(store),
		beds:        inpatient.NewBedRepoMem(store),
		admissions:  inpatient.NewAdmissionRepoMem(store),
		seq:         sequence.NewMemory(store),
		tx:          store,
		pinger:      memoryPinger{},
	}
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		patients:    patient.NewRepo(pool),
		doctors:     practitioner.NewRepo(pool),
		labTests:    diagnostics.NewLabTestRepoPG(pool),
		labRequests: diagnostics.NewLabRequestRepoPG(pool),
		inventory:   pharmacy.NewInventoryRepoPG(pool),
		dispenses:   pharmacy.NewDispenseRepoPG(pool),
		invoices:    billing.NewInvoiceRepoPG(pool),
		visits:      visit.NewVisitRepoPG(pool),
		records:     visit.NewRecordRepoPG(pool),
		wards:       inpatient.NewWardRepoPG(pool),
		beds:        inpatient.NewBedRepoPG(pool),
		admissions:  inpatient.NewAdmissionRepoPG(pool),
		seq:         sequence.NewPG(pool),
		tx:          db.NewTransactor(pool),
		pinger:      pool,
		poolStats:   func() *db.PoolStats { return db.GetPoolStats(pool) },
	}
}

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }

// services holds everything the HTTP layer mounts.
type services struct {
	patients      *patient.Service
	doctors       *practitioner.Service
	labs          *diagnostics.Service
	pharmacy      *pharmacy.Service
	billing       *billing.Service
	workflow      *visit.Workflow
	inpatient     *inpatient.Service
	notifications *notification.Manager
}

func buildServices(cfg *config.Config, st *stores, logger zerolog.Logger, hub *websocket.Hub, collector *metrics.Collector) *services {
	notifications := notification.NewManager(
		notification.LogSMSSender{Logger: logger.With().Str("component", "sms").Logger()},
		notification.NewTemplateEngine(),
	)

	// Patients are messaged only when SMS_ENABLED is set.
	var (
		visitNotifier     visit.Notifier
		inpatientNotifier inpatient.Notifier
	)
	if cfg.SMSEnabled {
		visitNotifier = notifications
		inpatientNotifier = notifications
	}

	patientSvc := patient.NewService(st.patients, st.seq, st.tx)
	doctorSvc := practitioner.NewService(st.doctors)
	labSvc := diagnostics.NewService(st.labTests, st.labRequests)
	pharmacySvc := pharmacy.NewService(st.inventory, st.dispenses, st.tx)
	billingSvc := billing.NewService(st.invoices, st.seq)

	workflow := visit.NewWorkflow(visit.Deps{
		Visits:   st.visits,
		Records:  st.records,
		Patients: patientSvc,
		Doctors:  doctorSvc,
		Labs:     labSvc,
		Pharmacy: pharmacySvc,
		Billing:  billingSvc,
		Seq:      st.seq,
		Tx:       st.tx,
		Events:   hub,
		Notifier: visitNotifier,
		Metrics:  collector,
		Logger:   logger.With().Str("component", "visit").Logger(),
		Settings: visit.Settings{
			DefaultConsultationFee: cfg.DefaultConsultationFee,
			RegistrationFee:        cfg.RegistrationFee,
			AvgConsultMinutes:      cfg.AvgConsultMinutes,
		},
	})

	inpatientSvc := inpatient.NewService(inpatient.Deps{
		Wards:        st.wards,
		Beds:         st.beds,
		Admissions:   st.admissions,
		Patients:     patientSvc,
		Billing:      billingSvc,
		Tx:           st.tx,
		Events:       hub,
		Notifier:     inpatientNotifier,
		Metrics:      collector,
		Logger:       logger.With().Str("component", "inpatient").Logger(),
		OtherCharges: cfg.IPDOtherCharges,
	})

	return &services{
		patients:      patientSvc,
		doctors:       doctorSvc,
		labs:          labSvc,
		pharmacy:      pharmacySvc,
		billing:       billingSvc,
		workflow:      workflow,
		inpatient:     inpatientSvc,
		notifications: notifications,
	}
}
