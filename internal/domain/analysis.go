package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NonFood is the food name reported for images that were not classified as food.
const NonFood = "Non-Food"

// AnalyzeCaption is the caption of the user message that carries an image.
const AnalyzeCaption = "Analyze this food image"

// FoodAnalysis is the response of the image analysis endpoint.
type FoodAnalysis struct {
	Status         string         `json:"status"`
	Filename       string         `json:"filename"`
	Classification string         `json:"classification"`
	FoodName       string         `json:"food_name"`
	Nutrition      map[string]any `json:"nutrition"`
}

// IsFood reports whether the image was recognized as food.
func (a *FoodAnalysis) IsFood() bool {
	return a.FoodName != "" && a.FoodName != NonFood && !strings.EqualFold(a.Classification, NonFood)
}

// nutritionLabels names the entries of the recipe-style nutrition array.
// Every value except calories is a percent of daily value.
var nutritionLabels = []struct {
	label string
	unit  string
}{
	{"Calories", "kcal"},
	{"Total fat", "% DV"},
	{"Sugar", "% DV"},
	{"Sodium", "% DV"},
	{"Protein", "% DV"},
	{"Saturated fat", "% DV"},
	{"Carbohydrates", "% DV"},
}

// recipe fields that are shown as plain lines, in order.
var recipeFields = []struct {
	key   string
	label string
}{
	{"minutes", "Preparation time (min)"},
	{"n_ingredients", "Ingredients count"},
	{"ingredients", "Ingredients"},
	{"description", "Description"},
}

// recipe fields that never appear in the generic section.
var hiddenFields = map[string]bool{
	"name": true, "id": true, "contributor_id": true, "submitted": true,
	"tags": true, "steps": true, "n_steps": true, "nutrition": true,
}

// FormatAnalysis renders an analysis result as the text of an analysis bubble.
func FormatAnalysis(a *FoodAnalysis) string {
	if a == nil {
		return "No analysis result."
	}
	if !a.IsFood() {
		return "This image was not recognized as food. Try a clearer photo of your meal."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Food: %s\n", a.FoodName)
	if a.Classification != "" {
		fmt.Fprintf(&b, "Classification: %s\n", a.Classification)
	}

	if len(a.Nutrition) == 0 {
		b.WriteString("No nutrition data available for this food.")
		return b.String()
	}

	if values, ok := nutritionValues(a.Nutrition["nutrition"]); ok {
		b.WriteString("\nNutrition per serving:\n")
		for i, v := range values {
			if i >= len(nutritionLabels) {
				break
			}
			fmt.Fprintf(&b, "- %s: %s %s\n", nutritionLabels[i].label, formatNumber(v), nutritionLabels[i].unit)
		}
	}

	var details []string
	for _, f := range recipeFields {
		if v, ok := a.Nutrition[f.key]; ok && v != nil {
			if s := formatValue(v); s != "" {
				details = append(details, fmt.Sprintf("- %s: %s", f.label, s))
			}
		}
	}

	// Any other scalar fields, in stable order.
	known := make(map[string]bool, len(recipeFields))
	for _, f := range recipeFields {
		known[f.key] = true
	}
	var extra []string
	for k := range a.Nutrition {
		if !known[k] && !hiddenFields[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if s := formatValue(a.Nutrition[k]); s != "" {
			details = append(details, fmt.Sprintf("- %s: %s", k, s))
		}
	}

	if len(details) > 0 {
		b.WriteString("\nDetails:\n")
		b.WriteString(strings.Join(details, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// nutritionValues accepts the nutrition column either as a JSON array or as
// its string encoding ("[51.5, 0.0, 13.0]").
func nutritionValues(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, len(out) > 0
	case []float64:
		return t, len(t) > 0
	case string:
		var arr []float64
		if err := json.Unmarshal([]byte(t), &arr); err != nil {
			return nil, false
		}
		return arr, len(arr) > 0
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatValue renders scalars and lists. Python-style list strings
// ("['a', 'b']") are unwrapped into comma-separated text.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
			parts := strings.Split(inner, ",")
			for i, p := range parts {
				parts[i] = strings.Trim(strings.TrimSpace(p), `'"`)
			}
			return strings.Join(parts, ", ")
		}
		return s
	case float64:
		return formatNumber(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := formatValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
