package assistant

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrChartShape is returned when the model's chart lines do not describe a usable series.
var ErrChartShape = errors.New("yapay zeka tutarsız veya eksik grafik verisi üretti")

// ChartType is a registry entry mapping a Chart.js kind to a display name and the
// keywords (Turkish and English) that select it.
type ChartType struct {
	Kind        string
	DisplayName string
	Keywords    []string
}

var chartTypes = []ChartType{
	{Kind: "bar", DisplayName: "Çubuk Grafik", Keywords: []string{"bar", "çubuk", "sütun"}},
	{Kind: "pie", DisplayName: "Pasta Grafik", Keywords: []string{"pie", "pasta"}},
	{Kind: "doughnut", DisplayName: "Halka Grafik", Keywords: []string{"doughnut", "halka", "simit"}},
	{Kind: "radar", DisplayName: "Radar Grafik", Keywords: []string{"radar"}},
	{Kind: "line", DisplayName: "Çizgi Grafik", Keywords: []string{"line", "çizgi"}},
	{Kind: "polarArea", DisplayName: "Kutup Alan Grafiği", Keywords: []string{"polar", "kutup"}},
	{Kind: "bubble", DisplayName: "Baloncuk Grafiği", Keywords: []string{"bubble", "baloncuk"}},
	{Kind: "scatter", DisplayName: "Dağılım Grafiği", Keywords: []string{"scatter", "dağılım", "serpilme"}},
}

// ChartTypes returns a copy of the registry in registration order.
func ChartTypes() []ChartType {
	out := make([]ChartType, len(chartTypes))
	copy(out, chartTypes)
	return out
}

func allChartKeywords() []string {
	seen := map[string]bool{}
	var out []string
	for _, ct := range chartTypes {
		for _, kw := range ct.Keywords {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}

// FindChartType returns the first registered chart, in registration order, with a
// keyword contained in the decision token, case-insensitively ("çubuk grafik" -> bar).
// "tablo" and unknown tokens select no chart.
func FindChartType(decision string) (ChartType, bool) {
	token := strings.ToLower(strings.TrimSpace(decision))
	if token == "" || token == tableToken {
		return ChartType{}, false
	}
	for _, ct := range chartTypes {
		for _, kw := range ct.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(token, kw) {
				return ct, true
			}
		}
	}
	return ChartType{}, false
}

// ChartSpec is the parsed TITLE/LABEL/DATA response.
type ChartSpec struct {
	Title  string
	Labels []string
	Data   []float64
}

// ParseChartSpec parses the line format. LABEL and DATA lines accumulate; values
// that are not finite dot-decimal numbers count as zero. Labels are trimmed but
// never skipped, so an empty label still pairs with its value.
func ParseChartSpec(text string) (ChartSpec, error) {
	spec := ChartSpec{Title: defaultChartTitle}
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "TITLE":
			spec.Title = value
		case "LABEL":
			for _, l := range strings.Split(value, ",") {
				spec.Labels = append(spec.Labels, strings.TrimSpace(l))
			}
		case "DATA":
			for _, d := range strings.Split(value, ",") {
				n, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
				if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
					n = 0
				}
				spec.Data = append(spec.Data, n)
			}
		}
	}
	if len(spec.Labels) == 0 || len(spec.Data) == 0 || len(spec.Labels) != len(spec.Data) {
		return spec, fmt.Errorf("%w (etiket: %d, değer: %d)", ErrChartShape, len(spec.Labels), len(spec.Data))
	}
	return spec, nil
}

// ChartPayload is a Chart.js configuration with a single dataset.
type ChartPayload struct {
	Type string    `json:"type"`
	Data ChartData `json:"data"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

func BuildChartPayload(kind string, spec ChartSpec) ChartPayload {
	return ChartPayload{
		Type: kind,
		Data: ChartData{
			Labels:   spec.Labels,
			Datasets: []ChartDataset{{Label: spec.Title, Data: spec.Data}},
		},
	}
}
