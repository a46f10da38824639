package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAnalysis_RecipeRow(t *testing.T) {
	raw := `{
		"status": "success",
		"filename": "pasta.jpg",
		"classification": "Food",
		"food_name": "creamy pasta",
		"nutrition": {
			"name": "creamy pasta",
			"id": 1234,
			"minutes": 25,
			"nutrition": "[410.5, 30.0, 12.0, 20.0, 35.0, 50.0, 15.0]",
			"ingredients": "['pasta', 'cream', 'garlic']",
			"n_ingredients": 3,
			"tags": "['30-minutes-or-less']"
		}
	}`
	var a FoodAnalysis
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	text := FormatAnalysis(&a)
	assert.Contains(t, text, "Food: creamy pasta")
	assert.Contains(t, text, "- Calories: 410.5 kcal")
	assert.Contains(t, text, "- Protein: 35 % DV")
	assert.Contains(t, text, "- Carbohydrates: 15 % DV")
	assert.Contains(t, text, "- Preparation time (min): 25")
	assert.Contains(t, text, "- Ingredients: pasta, cream, garlic")
	assert.NotContains(t, text, "30-minutes-or-less")
	assert.NotContains(t, text, "1234")
}

func TestFormatAnalysis_ArrayNutrition(t *testing.T) {
	a := &FoodAnalysis{
		Classification: "Food",
		FoodName:       "salad",
		Nutrition: map[string]any{
			"nutrition": []any{120.0, 2.0, 5.0},
			"calories_note": "light",
		},
	}
	text := FormatAnalysis(a)
	assert.Contains(t, text, "- Calories: 120 kcal")
	assert.Contains(t, text, "- Sugar: 5 % DV")
	assert.Contains(t, text, "- calories_note: light")
}

func TestFormatAnalysis_NonFood(t *testing.T) {
	a := &FoodAnalysis{Classification: "Non-Food", FoodName: NonFood, Nutrition: map[string]any{}}
	assert.False(t, a.IsFood())
	assert.Contains(t, FormatAnalysis(a), "not recognized as food")
}

func TestFormatAnalysis_NoNutrition(t *testing.T) {
	a := &FoodAnalysis{Classification: "Food", FoodName: "mystery stew"}
	text := FormatAnalysis(a)
	assert.Contains(t, text, "Food: mystery stew")
	assert.Contains(t, text, "No nutrition data available")
}

func TestFormatAnalysis_Nil(t *testing.T) {
	assert.Equal(t, "No analysis result.", FormatAnalysis(nil))
}
