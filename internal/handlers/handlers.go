package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"baydelivery/db"
	"baydelivery/internal/pricing"
)

// Handler wires storage, the workflow service and the optional collaborators
// into the HTTP surface.
type Handler struct {
	Store   StorageInterface
	Flow    WorkflowInterface
	Pricing pricing.Config
	Geo     DistanceResolver
	Vision  ImageEstimator
	Vault   BackupVault
	Log     *zap.Logger
}

func NewHandler(store StorageInterface, flow WorkflowInterface, cfg pricing.Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Store: store, Flow: flow, Pricing: cfg, Log: log}
}

func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"pricing_version": h.Pricing.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// quoteRequest is the customer-facing quote form.
type quoteRequest struct {
	ServiceType            string  `json:"service_type"`
	EstimatedHours         float64 `json:"estimated_hours"`
	CrewSize               int     `json:"crew_size"`
	GarbageBagCount        int     `json:"garbage_bag_count"`
	MattressesCount        int     `json:"mattresses_count"`
	BoxSpringsCount        int     `json:"box_springs_count"`
	ScrapPickupLocation    string  `json:"scrap_pickup_location"`
	CustomerName           *string `json:"customer_name"`
	CustomerPhone          *string `json:"customer_phone"`
	JobAddress             *string `json:"job_address"`
	DropoffAddress         *string `json:"dropoff_address"`
	JobDescriptionCustomer *string `json:"job_description_customer"`
}

// quoteResponse is what the customer sees: totals and disclaimer, never the
// internal breakdown.
type quoteResponse struct {
	QuoteID      string  `json:"quote_id"`
	ServiceType  string  `json:"service_type"`
	TotalCashCAD float64 `json:"total_cash_cad"`
	TotalEMTCAD  float64 `json:"total_emt_cad"`
	Disclaimer   string  `json:"disclaimer"`
}

func validateQuoteRequest(q *quoteRequest) error {
	serviceType, ok := pricing.NormalizeServiceType(q.ServiceType)
	if !ok {
		return errors.New("unknown service_type")
	}
	if q.EstimatedHours < 0 {
		return errors.New("estimated_hours must not be negative")
	}
	if q.CrewSize < 0 {
		return errors.New("crew_size must not be negative")
	}
	if q.GarbageBagCount < 0 || q.MattressesCount < 0 || q.BoxSpringsCount < 0 {
		return errors.New("item counts must not be negative")
	}
	if q.ScrapPickupLocation != "" && q.ScrapPickupLocation != "curbside" && q.ScrapPickupLocation != "inside" {
		return errors.New("scrap_pickup_location must be 'curbside' or 'inside'")
	}
	if serviceType == pricing.ServiceSmallMove {
		if q.JobAddress == nil || *q.JobAddress == "" || q.DropoffAddress == nil || *q.DropoffAddress == "" {
			return errors.New("small_move requires job_address and dropoff_address")
		}
	}
	return nil
}

// CalculateQuoteHandler handles POST /api/quote: price the job, persist the
// quote with the raw request and the full engine output, return the customer
// view.
func (h *Handler) CalculateQuoteHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := validateQuoteRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := pricing.Compute(pricing.Input{
		ServiceType:         req.ServiceType,
		Hours:               req.EstimatedHours,
		CrewSize:            req.CrewSize,
		GarbageBagCount:     req.GarbageBagCount,
		MattressesCount:     req.MattressesCount,
		BoxSpringsCount:     req.BoxSpringsCount,
		ScrapPickupLocation: req.ScrapPickupLocation,
	}, h.Pricing)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownServiceType) {
			http.Error(w, "unknown service_type", http.StatusBadRequest)
			return
		}
		h.Log.Error("pricing failed", zap.String("service_type", req.ServiceType), zap.Error(err))
		http.Error(w, "Failed to compute quote", http.StatusInternalServerError)
		return
	}

	responseJSON, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Failed to compute quote", http.StatusInternalServerError)
		return
	}

	quote := &db.Quote{
		QuoteID:      uuid.NewString(),
		CreatedAt:    clockNow(),
		ServiceType:  result.ServiceType,
		TotalCashCAD: result.TotalCashCAD,
		TotalEMTCAD:  result.TotalEMTCAD,
		RequestJSON:  string(body),
		ResponseJSON: string(responseJSON),
	}
	if err := h.Store.CreateQuote(r.Context(), quote); err != nil {
		h.Log.Error("create quote failed", zap.Error(err))
		http.Error(w, "Failed to save quote", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		QuoteID:      quote.QuoteID,
		ServiceType:  result.ServiceType,
		TotalCashCAD: result.TotalCashCAD,
		TotalEMTCAD:  result.TotalEMTCAD,
		Disclaimer:   result.Disclaimer,
	})
}
