package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/observability/metrics"
	"github.com/zapleads/engage-platform/pkg/logging"
)

// initialStages are the funnel positions a "yes" may promote from. A lead
// already past them is never demoted by the automation.
var initialStages = map[string]bool{
	crm.StageNewLead:   true,
	crm.StageContacted: true,
}

// Engine advances the sales funnel from a classified call intent. All
// mutations are keyed by (campaign type, intent); counters on the campaign
// are monotonic.
type Engine struct {
	leads     crm.LeadRepository
	tasks     crm.TaskRepository
	campaigns crm.CampaignRepository
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewEngine(leads crm.LeadRepository, tasks crm.TaskRepository, campaigns crm.CampaignRepository, m *metrics.EngineMetrics, logger *logging.Logger) *Engine {
	if leads == nil || tasks == nil || campaigns == nil {
		panic("voice: lead, task and campaign repositories required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		leads:     leads,
		tasks:     tasks,
		campaigns: campaigns,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply runs the funnel transition for a completed call.
func (e *Engine) Apply(ctx context.Context, call *crm.VoiceCall, c Classification) error {
	lead, err := e.leads.GetLead(ctx, call.LeadID)
	if err != nil {
		return fmt.Errorf("voice: load lead: %w", err)
	}

	var campaign *crm.VoiceCampaign
	if call.CampaignID != "" {
		campaign, err = e.campaigns.GetCampaign(ctx, call.CampaignID)
		if err != nil && !errors.Is(err, crm.ErrNotFound) {
			return fmt.Errorf("voice: load campaign: %w", err)
		}
	}
	campaignType := crm.CampaignProspecting
	if campaign != nil && campaign.Type != "" {
		campaignType = campaign.Type
	}

	now := e.now().UTC()

	switch c.Intent {
	case IntentYes:
		e.applyYes(ctx, lead, campaign, call, c, now)
	case IntentMaybe:
		e.applyMaybe(ctx, lead, campaign, campaignType, call, c, now)
	case IntentNo:
		e.applyNo(lead, now)
	default:
		// Ambiguous signal. Wait for more rather than guessing a stage.
		e.logger.Info("unknown intent, funnel untouched",
			"call_id", call.ID, "lead_id", lead.ID, "transcript_len", len(call.Transcript))
		e.metrics.ObserveFunnelTransition(campaignType, string(IntentUnknown))
		return nil
	}

	lead.TouchLastInteraction(now)
	if err := e.leads.UpdateLead(ctx, lead); err != nil {
		return fmt.Errorf("voice: update lead: %w", err)
	}

	if campaign != nil {
		if err := e.campaigns.IncrementCampaignResponse(ctx, campaign.ID, string(c.Intent)); err != nil {
			e.logger.Error("campaign counter update failed", "error", err, "campaign_id", campaign.ID)
		}
	}
	e.metrics.ObserveFunnelTransition(campaignType, string(c.Intent))
	return nil
}

func (e *Engine) applyYes(ctx context.Context, lead *crm.Lead, campaign *crm.VoiceCampaign, call *crm.VoiceCall, c Classification, now time.Time) {
	if initialStages[lead.FunnelStage] {
		lead.FunnelStage = crm.StageQualified
	}
	lead.Score += 30
	if lead.Score > 100 {
		lead.Score = 100
	}
	lead.Temperature = crm.TemperatureHot

	e.createTask(ctx, lead, campaign, call, &crm.Task{
		LeadID:      lead.ID,
		Title:       fmt.Sprintf("Contato qualificado: %s", lead.Name),
		Description: yesTaskDescription(lead, campaign, c),
		Priority:    crm.PriorityHigh,
		DueDate:     now.Add(24 * time.Hour),
	})
}

func (e *Engine) applyMaybe(ctx context.Context, lead *crm.Lead, campaign *crm.VoiceCampaign, campaignType string, call *crm.VoiceCall, c Classification, now time.Time) {
	offset, priority := maybeFollowUp(c.Objection, campaignType)
	e.createTask(ctx, lead, campaign, call, &crm.Task{
		LeadID:      lead.ID,
		Title:       fmt.Sprintf("Retomar contato: %s", lead.Name),
		Description: maybeTaskDescription(lead, campaign, c),
		Priority:    priority,
		DueDate:     now.Add(offset),
	})
}

func (e *Engine) applyNo(lead *crm.Lead, now time.Time) {
	lead.FunnelStage = crm.StageLostSale
	// Durable suppression: no later call may re-enable voice outreach.
	lead.OptOutVoice = true
	line := fmt.Sprintf("[%s] Lead recusou contato por voz; campanha encerrada.", now.Format(time.RFC3339))
	if lead.Notes != "" {
		lead.Notes += "\n"
	}
	lead.Notes += line
}

func (e *Engine) createTask(ctx context.Context, lead *crm.Lead, campaign *crm.VoiceCampaign, call *crm.VoiceCall, task *crm.Task) {
	task.SourceID = call.ID
	if campaign != nil && campaign.AssignmentMode == crm.AssignmentSpecific {
		task.AssignedToUserID = campaign.AssignedToUserID
	}
	if err := e.tasks.CreateTask(ctx, task); err != nil {
		e.logger.Error("follow-up task creation failed", "error", err, "lead_id", lead.ID)
	}
}

// maybeFollowUp picks the follow-up delay and priority for a hesitant lead.
func maybeFollowUp(objection, campaignType string) (time.Duration, string) {
	switch objection {
	case ObjectionTiming:
		return 3 * 24 * time.Hour, crm.PriorityHigh
	case ObjectionFinancial:
		return 7 * 24 * time.Hour, crm.PriorityMedium
	case ObjectionResearch:
		return 5 * 24 * time.Hour, crm.PriorityMedium
	}
	if campaignType == crm.CampaignReengagement {
		return 5 * 24 * time.Hour, crm.PriorityMedium
	}
	return 10 * 24 * time.Hour, crm.PriorityMedium
}

func yesTaskDescription(lead *crm.Lead, campaign *crm.VoiceCampaign, c Classification) string {
	name := "sem campanha"
	nextStep := "Ligar para agendar a visita."
	if campaign != nil {
		name = campaign.Name
		if campaign.Type == crm.CampaignReengagement {
			nextStep = "Ligar para reativar o relacionamento e agendar retorno."
		}
	}
	desc := fmt.Sprintf("Lead %s respondeu SIM na campanha %s (confiança %d%%).", lead.Name, name, c.Confidence)
	if c.Objection != "" {
		desc += fmt.Sprintf(" Objeção registrada: %s.", c.Objection)
	}
	return desc + " Próximo passo: " + nextStep
}

func maybeTaskDescription(lead *crm.Lead, campaign *crm.VoiceCampaign, c Classification) string {
	name := "sem campanha"
	if campaign != nil {
		name = campaign.Name
	}
	desc := fmt.Sprintf("Lead %s ficou em dúvida na campanha %s (confiança %d%%).", lead.Name, name, c.Confidence)
	if c.Objection != "" {
		desc += fmt.Sprintf(" Objeção: %s.", c.Objection)
	}
	return desc + " Próximo passo: " + maybeNextStep(c.Objection)
}

func maybeNextStep(objection string) string {
	switch objection {
	case ObjectionTiming:
		return "Contatar em um horário melhor para o lead."
	case ObjectionFinancial:
		return "Esclarecer as opções de preço e parcelamento."
	case ObjectionResearch:
		return "Enviar os diferenciais do serviço para apoiar a decisão."
	}
	return "Retomar a conversa e entender o que falta para decidir."
}
