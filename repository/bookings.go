package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/medspa/backend/models"
)

// Appointment operations
func (r *GORMRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		slog.Error("Failed to create appointment", "error", err, "client_id", appt.ClientID)
		return err
	}
	slog.Info("Appointment created", "appointment_id", appt.ID, "client_id", appt.ClientID)
	return nil
}

func (r *GORMRepository) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Client").Preload("Provider").Preload("Treatment").
		Where("id = ?", id).First(&appt).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get appointment", "error", err, "appointment_id", id)
		return nil, err
	}
	return &appt, nil
}

// AppointmentFilter narrows ListAppointments.
type AppointmentFilter struct {
	ClientID   string
	ProviderID string
	From       *time.Time
	To         *time.Time
	ListOptions
}

func (r *GORMRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	var appts []models.Appointment
	q := r.db.WithContext(ctx).Model(&models.Appointment{}).Preload("Provider").Preload("Treatment")
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	} else {
		q = q.Preload("Client")
	}
	if f.ProviderID != "" {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if f.From != nil {
		q = q.Where("starts_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("starts_at < ?", *f.To)
	}
	if err := f.apply(q).Order("starts_at").Find(&appts).Error; err != nil {
		slog.Error("Failed to list appointments", "error", err)
		return nil, err
	}
	return appts, nil
}

func (r *GORMRepository) UpdateAppointment(ctx context.Context, appt *models.Appointment) error {
	if err := r.db.WithContext(ctx).Omit("Client", "Provider", "Treatment").Save(appt).Error; err != nil {
		slog.Error("Failed to update appointment", "error", err, "appointment_id", appt.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteAppointment(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Appointment{})
	if res.Error != nil {
		slog.Error("Failed to delete appointment", "error", res.Error, "appointment_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Lead operations
func (r *GORMRepository) CreateLead(ctx context.Context, lead *models.Lead) error {
	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		slog.Error("Failed to create lead", "error", err, "source", lead.Source)
		return err
	}
	slog.Info("Lead captured", "lead_id", lead.ID, "source", lead.Source)
	return nil
}

func (r *GORMRepository) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lead).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get lead", "error", err, "lead_id", id)
		return nil, err
	}
	return &lead, nil
}

func (r *GORMRepository) ListLeads(ctx context.Context, source string, opts ListOptions) ([]models.Lead, error) {
	var leads []models.Lead
	q := r.db.WithContext(ctx).Model(&models.Lead{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if opts.Search != "" {
		p := likePattern(opts.Search)
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR phone LIKE ?", p, p, p)
	}
	if err := opts.apply(q).Order("created_at DESC").Find(&leads).Error; err != nil {
		slog.Error("Failed to list leads", "error", err)
		return nil, err
	}
	return leads, nil
}

// ListSMSLeads returns non-archived leads that opted into text messages.
func (r *GORMRepository) ListSMSLeads(ctx context.Context) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.WithContext(ctx).
		Where("status <> ? AND sms_opt_in = ? AND phone <> ''", models.LeadArchived, true).
		Find(&leads).Error
	if err != nil {
		slog.Error("Failed to list sms leads", "error", err)
		return nil, err
	}
	return leads, nil
}

func (r *GORMRepository) UpdateLeadStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		slog.Error("Failed to update lead status", "error", res.Error, "lead_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Consent operations
func (r *GORMRepository) CreateConsentForm(ctx context.Context, form *models.ConsentForm) error {
	if err := r.db.WithContext(ctx).Create(form).Error; err != nil {
		slog.Error("Failed to create consent form", "error", err, "client_id", form.ClientID)
		return err
	}
	slog.Info("Consent form created", "consent_id", form.ID, "client_id", form.ClientID)
	return nil
}

func (r *GORMRepository) GetConsentForm(ctx context.Context, id string) (*models.ConsentForm, error) {
	var form models.ConsentForm
	if err := r.db.WithContext(ctx).Preload("Client").Where("id = ?", id).First(&form).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get consent form", "error", err, "consent_id", id)
		return nil, err
	}
	return &form, nil
}

func (r *GORMRepository) ListConsentForms(ctx context.Context, clientID string, opts ListOptions) ([]models.ConsentForm, error) {
	var forms []models.ConsentForm
	q := r.db.WithContext(ctx).Model(&models.ConsentForm{})
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	if err := opts.apply(q).Order("created_at DESC").Find(&forms).Error; err != nil {
		slog.Error("Failed to list consent forms", "error", err, "client_id", clientID)
		return nil, err
	}
	return forms, nil
}

// SignConsentForm moves a pending form to signed. It reports false when the
// form was not pending, so two concurrent signatures cannot both win.
func (r *GORMRepository) SignConsentForm(ctx context.Context, id, signatureName, ip string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ConsentForm{}).
		Where("id = ? AND status = ?", id, models.ConsentPending).
		Updates(map[string]interface{}{
			"status":         models.ConsentSigned,
			"signature_name": signatureName,
			"signed_ip":      ip,
			"signed_at":      at,
		})
	if res.Error != nil {
		slog.Error("Failed to sign consent form", "error", res.Error, "consent_id", id)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMRepository) RevokeConsentForm(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.ConsentForm{}).Where("id = ?", id).Update("status", models.ConsentRevoked)
	if res.Error != nil {
		slog.Error("Failed to revoke consent form", "error", res.Error, "consent_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
