package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/reorder"
)

// handleReorderSuggestions runs the reorder engine (C6) over the org's
// reorder-inputs mart rows and returns the surviving (non-dropped)
// recommendations.
func (s *Server) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	strategy := reorder.Strategy(queryString(r, "strategy", string(reorder.StrategyLatest)))
	if strategy != reorder.StrategyLatest && strategy != reorder.StrategyConservative {
		writeError(w, fmt.Errorf("%w: strategy must be latest or conservative", apperr.ErrValidation))
		return
	}
	overrideHorizon, err := queryInt(r, "horizon_days_override", 0, 1, 365)
	if err != nil {
		writeError(w, err)
		return
	}

	inputs, err := s.db.ReorderInputs(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := s.clock.Now()
	var recs []reorder.Recommendation
	for _, in := range inputs {
		rec := reorder.Evaluate(in, strategy, overrideHorizon, now)
		if !rec.Dropped {
			recs = append(recs, rec)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategy":        strategy,
		"suggestions":     recs,
		"suggested_count": len(recs),
	})
}

// reorderExplainResponse shapes Evaluate's output for the single-product
// explainer: a skipped recommendation surfaces skip_reason instead of a
// quantity.
type reorderExplainResponse struct {
	ProductID           string              `json:"product_id"`
	SKU                 string              `json:"sku"`
	Name                string              `json:"name"`
	Skipped             bool                `json:"skipped"`
	SkipReason          string              `json:"skip_reason,omitempty"`
	RecommendedQuantity int                 `json:"recommended_quantity,omitempty"`
	VelocitySource      db.VelocitySource   `json:"velocity_source"`
	Velocity            float64             `json:"velocity"`
	Reasons             []reorder.Reason    `json:"reasons"`
	Adjustments         []string            `json:"adjustments"`
	Explanation         reorder.Explanation `json:"explanation"`
	DaysCoverCurrent    *float64            `json:"days_cover_current,omitempty"`
	DaysCoverAfter      *float64            `json:"days_cover_after,omitempty"`
}

func explainFromRecommendation(name string, rec reorder.Recommendation) reorderExplainResponse {
	resp := reorderExplainResponse{
		ProductID:        rec.ProductID,
		SKU:              rec.SKU,
		Name:             name,
		Skipped:          rec.Dropped,
		VelocitySource:   rec.VelocitySource,
		Velocity:         rec.Velocity,
		Reasons:          rec.Reasons,
		Adjustments:      rec.Adjustments,
		Explanation:      rec.Explanation,
		DaysCoverCurrent: rec.DaysCoverCurrent,
		DaysCoverAfter:   rec.DaysCoverAfter,
	}
	if rec.Dropped {
		if len(rec.Reasons) > 0 {
			resp.SkipReason = string(rec.Reasons[0])
		}
	} else {
		resp.RecommendedQuantity = rec.Quantity
	}
	return resp
}

// handleReorderExplain returns the full Explanation (including dropped
// products) for a single product, so the UI can show why a recommendation
// was or wasn't made.
func (s *Server) handleReorderExplain(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	productID := mux.Vars(r)["product_id"]
	strategy := reorder.Strategy(queryString(r, "strategy", string(reorder.StrategyLatest)))
	if strategy != reorder.StrategyLatest && strategy != reorder.StrategyConservative {
		writeError(w, fmt.Errorf("%w: strategy must be latest or conservative", apperr.ErrValidation))
		return
	}

	inputs, err := s.db.ReorderInputs(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, in := range inputs {
		if in.ProductID != productID {
			continue
		}
		rec := reorder.Evaluate(in, strategy, 0, s.clock.Now())
		name := in.SKU
		if product, err := s.db.GetProductByID(r.Context(), orgID, productID); err == nil {
			name = product.Name
		}
		writeJSON(w, http.StatusOK, explainFromRecommendation(name, rec))
		return
	}
	writeError(w, fmt.Errorf("%w: product not found among reorder inputs", apperr.ErrNotFound))
}

// draftPORequest mirrors the documented draft-PO body: product_ids
// narrows which reorder candidates get drafted, strategy and
// horizon_days_override feed Evaluate the same as the suggestions
// endpoint. auto_number is accepted for forward compatibility; this
// system has no manual PO-numbering scheme to fall back to, so drafts
// are always assigned sequential numbers regardless of its value.
type draftPORequest struct {
	ProductIDs          []string `json:"product_ids"`
	Strategy            string   `json:"strategy"`
	HorizonDaysOverride *int     `json:"horizon_days_override"`
	AutoNumber          *bool    `json:"auto_number"`
}

// handleDraftPO groups the reorder recommendations for the requested
// products into one draft PO per supplier and persists them.
func (s *Server) handleDraftPO(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)

	var req draftPORequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
		return
	}
	if len(req.ProductIDs) == 0 {
		writeError(w, fmt.Errorf("%w: product_ids is required", apperr.ErrValidation))
		return
	}
	strategy := reorder.Strategy(req.Strategy)
	if strategy == "" {
		strategy = reorder.StrategyLatest
	}
	if strategy != reorder.StrategyLatest && strategy != reorder.StrategyConservative {
		writeError(w, fmt.Errorf("%w: strategy must be latest or conservative", apperr.ErrValidation))
		return
	}
	overrideHorizon := 0
	if req.HorizonDaysOverride != nil {
		overrideHorizon = *req.HorizonDaysOverride
		if overrideHorizon < 1 || overrideHorizon > 365 {
			writeError(w, fmt.Errorf("%w: horizon_days_override must be between 1 and 365", apperr.ErrValidation))
			return
		}
	}

	wanted := make(map[string]bool, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		wanted[id] = true
	}

	inputs, err := s.db.ReorderInputs(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := s.clock.Now()
	var recs []reorder.Recommendation
	leadTimeBySupplier := map[string]int{}
	for _, in := range inputs {
		if !wanted[in.ProductID] {
			continue
		}
		rec := reorder.Evaluate(in, strategy, overrideHorizon, now)
		if !rec.Dropped && rec.SupplierID != "" {
			recs = append(recs, rec)
			if _, ok := leadTimeBySupplier[rec.SupplierID]; !ok {
				if supplier, err := s.db.GetSupplier(r.Context(), orgID, rec.SupplierID); err == nil {
					leadTimeBySupplier[rec.SupplierID] = supplier.LeadTimeDays
				}
			}
		}
	}

	drafts := reorder.GroupIntoDraftPOs(recs, leadTimeBySupplier, "PO", now)

	created := make([]map[string]interface{}, 0, len(drafts))
	for _, draft := range drafts {
		po := db.PurchaseOrder{
			OrgID:       orgID,
			SupplierID:  draft.SupplierID,
			PONumber:    draft.PONumber,
			Status:      db.POStatusDraft,
			TotalAmount: draft.TotalAmount,
			CreatedAt:   now,
		}
		items := make([]db.POItem, 0, len(draft.Items))
		for _, item := range draft.Items {
			items = append(items, db.POItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitCost:  item.UnitCost,
				LineTotal: item.LineTotal,
			})
		}
		id, err := s.db.CreatePurchaseOrder(r.Context(), po, items)
		if err != nil {
			writeError(w, err)
			return
		}
		created = append(created, map[string]interface{}{
			"id":           id,
			"po_number":    draft.PONumber,
			"supplier_id":  draft.SupplierID,
			"total_amount": draft.TotalAmount.String(),
			"item_count":   len(draft.Items),
		})
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"draft_purchase_orders": created})
}

// handleGetDraftPO fetches a single purchase order (draft or otherwise)
// and its line items.
func (s *Server) handleGetDraftPO(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromContext(r)
	poID := mux.Vars(r)["po_id"]

	po, items, err := s.db.GetPurchaseOrder(r.Context(), orgID, poID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purchase_order": po,
		"items":          items,
	})
}
