package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/fwi-predictor/internal/models"
	"github.com/kjstillabower/fwi-predictor/internal/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// fieldSpec describes one form input. Order follows models.FeatureNames.
type fieldSpec struct {
	Name        string
	Label       string
	Placeholder string
	Description string
}

var fieldSpecs = [models.NumFeatures]fieldSpec{
	{"Temperature", "Temperature (°C)", "e.g., 25.5", "Air temperature in Celsius"},
	{"RH", "Relative Humidity (%)", "e.g., 65", "Relative humidity percentage"},
	{"Ws", "Wind Speed (km/h)", "e.g., 15.2", "Wind speed in kilometers per hour"},
	{"Rain", "Rainfall (mm)", "e.g., 0.5", "Rainfall amount in millimeters"},
	{"FFMC", "Fine Fuel Moisture Code", "e.g., 85.5", "Fine fuel moisture content indicator"},
	{"DMC", "Duff Moisture Code", "e.g., 26.2", "Duff layer moisture content indicator"},
	{"ISI", "Initial Spread Index", "e.g., 5.2", "Fire spread rate indicator"},
	{"Classes", "Fire Classes", "e.g., 1", "Fire classification (0 = not fire, 1 = fire)"},
	{"Region", "Region Code", "e.g., 1", "Geographic region identifier"},
}

type fieldView struct {
	fieldSpec
	Value string
}

type resultView struct {
	Value           string
	RiskLevel       models.RiskLevel
	Description     string
	Recommendations []string
	Class           string
}

type pageData struct {
	Title     string
	Status    string
	Error     string
	RequestID string
	Fields    []fieldView
	Result    *resultView
}

// formFields builds the input list, echoing submitted values back when present.
func formFields(submitted url.Values) []fieldView {
	out := make([]fieldView, len(fieldSpecs))
	for i, spec := range fieldSpecs {
		out[i] = fieldView{fieldSpec: spec, Value: submitted.Get(spec.Name)}
	}
	return out
}

func newResultView(p models.Prediction) *resultView {
	return &resultView{
		Value:           models.FormatFWI(p.FWI),
		RiskLevel:       p.RiskLevel,
		Description:     p.Description,
		Recommendations: p.Recommendations,
		Class:           "risk-" + strings.ToLower(string(p.RiskLevel)),
	}
}

// renderPage executes the named template into a buffer so a template failure still yields a clean 500.
func renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		observability.LoggerFromContext(r.Context()).Error("render page", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderErrorPage renders the generic HTML error page.
func renderErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	renderPage(w, r, status, "error.html", pageData{
		Title:     http.StatusText(status),
		Status:    strconv.Itoa(status) + " " + http.StatusText(status),
		Error:     message,
		RequestID: observability.CorrelationIDFromContext(r.Context()),
	})
}
