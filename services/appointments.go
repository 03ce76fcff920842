package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

type AppointmentInput struct {
	ClientID        string    `json:"client_id" validate:"omitempty,uuid"`
	ProviderID      string    `json:"provider_id" validate:"omitempty,uuid"`
	TreatmentID     string    `json:"treatment_id" validate:"omitempty,uuid"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=5,max=600"`
	Status          string    `json:"status" validate:"omitempty,oneof=requested confirmed completed cancelled no_show"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

type AppointmentService struct {
	repo   *repository.GORMRepository
	events EventPublisher
	now    func() time.Time
}

func NewAppointmentService(repo *repository.GORMRepository, events EventPublisher) *AppointmentService {
	return &AppointmentService{repo: repo, events: events, now: time.Now}
}

// Request books a requested appointment for a portal client. Staff confirm
// it later.
func (s *AppointmentService) Request(ctx context.Context, client *models.Client, in AppointmentInput) (*models.Appointment, error) {
	if in.StartsAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: appointment must be in the future", ErrInvalidInput)
	}
	in.ClientID = client.ID
	in.Status = models.AppointmentRequested
	appt, err := s.build(ctx, &models.Appointment{}, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	publish(s.events, EventAppointmentRequested, map[string]interface{}{
		"appointment_id": appt.ID,
		"client_id":      client.ID,
		"client_name":    client.FullName(),
		"starts_at":      appt.StartsAt,
	})
	slog.Info("Appointment requested", "appointment_id", appt.ID, "client_id", client.ID)
	return appt, nil
}

// Create books an appointment on behalf of a client.
func (s *AppointmentService) Create(ctx context.Context, in AppointmentInput) (*models.Appointment, error) {
	if in.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = models.AppointmentConfirmed
	}
	appt, err := s.build(ctx, &models.Appointment{}, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return appt, nil
}

func (s *AppointmentService) Update(ctx context.Context, id string, in AppointmentInput) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment", ErrNotFound)
	}
	if in.ClientID == "" {
		in.ClientID = appt.ClientID
	}
	if in.Status == "" {
		in.Status = appt.Status
	}
	if models.ValidAppointmentStatus(in.Status) && !models.CanTransitionAppointment(appt.Status, in.Status) {
		return nil, fmt.Errorf("%w: cannot move appointment from %s to %s", ErrConflict, appt.Status, in.Status)
	}
	if _, err := s.build(ctx, appt, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return appt, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: appointment", ErrNotFound)
		}
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// build copies in onto appt after checking the referenced rows exist.
func (s *AppointmentService) build(ctx context.Context, appt *models.Appointment, in AppointmentInput) (*models.Appointment, error) {
	if !models.ValidAppointmentStatus(in.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	client, err := s.repo.GetClient(ctx, in.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}

	appt.ClientID = client.ID
	appt.ProviderID = nil
	appt.TreatmentID = nil
	appt.DurationMinutes = in.DurationMinutes

	if in.ProviderID != "" {
		provider, err := s.repo.GetProvider(ctx, in.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("failed to get provider: %w", err)
		}
		if provider == nil {
			return nil, fmt.Errorf("%w: provider", ErrNotFound)
		}
		appt.ProviderID = &provider.ID
	}
	if in.TreatmentID != "" {
		treatment, err := s.repo.GetTreatment(ctx, in.TreatmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get treatment: %w", err)
		}
		if treatment == nil {
			return nil, fmt.Errorf("%w: treatment", ErrNotFound)
		}
		appt.TreatmentID = &treatment.ID
		if appt.DurationMinutes == 0 {
			appt.DurationMinutes = treatment.DurationMinutes
		}
	}
	if appt.DurationMinutes == 0 {
		appt.DurationMinutes = 60
	}

	appt.StartsAt = in.StartsAt.UTC()
	appt.Status = in.Status
	appt.Notes = in.Notes
	// Relations may be stale after the ids changed.
	appt.Client, appt.Provider, appt.Treatment = nil, nil, nil
	return appt, nil
}
