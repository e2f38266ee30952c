package consultation

import (
	"github.com/futig/sla-consultant/internal/entity"
	consultationUsecase "github.com/futig/sla-consultant/internal/usecase/consultation"
)

// ConsultationResponse is the view plus the still-missing required outputs
type ConsultationResponse struct {
	entity.ConsultationView
	MissingRequired []string `json:"missing_required"`
}

// ListConsultationsResponse wraps live consultations
type ListConsultationsResponse struct {
	Consultations []entity.ConsultationListItem `json:"consultations"`
	Total         int                           `json:"total"`
}

func toConsultationResponse(view entity.ConsultationView) ConsultationResponse {
	missing := consultationUsecase.MissingRequired(view.Guidance)
	if missing == nil {
		missing = []string{}
	}
	return ConsultationResponse{
		ConsultationView: view,
		MissingRequired:  missing,
	}
}

func toListResponse(items []entity.ConsultationListItem) ListConsultationsResponse {
	if items == nil {
		items = []entity.ConsultationListItem{}
	}
	return ListConsultationsResponse{
		Consultations: items,
		Total:         len(items),
	}
}
