package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AnonymousUserID is sent when the profile carries no user id.
const AnonymousUserID = "anonymous"

const dateLayout = "2006-01-02"

// Date is a calendar date that accepts "2006-01-02" or RFC 3339 input and
// always marshals as "2006-01-02".
type Date struct {
	time.Time
}

// ParseDate parses a date in either supported layout.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidInput)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Date) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidInput)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UserProfile is the locally persisted fitness profile. It is written once
// by the profile command and read by the chat session.
type UserProfile struct {
	UserID                 string   `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name                   string   `json:"name" yaml:"name" validate:"required"`
	Email                  string   `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	DOB                    Date     `json:"dob" yaml:"dob"`
	Gender                 string   `json:"gender" yaml:"gender" validate:"required,oneof=Male Female Other"`
	Height                 float64  `json:"height" yaml:"height" validate:"required,gt=0"`
	Weight                 float64  `json:"weight" yaml:"weight" validate:"required,gt=0"`
	Region                 string   `json:"region" yaml:"region" validate:"required"`
	Goals                  []string `json:"goals" yaml:"goals" validate:"required,min=1,dive,required"`
	DietaryRestrictions    []string `json:"dietary_restrictions,omitempty" yaml:"dietary_restrictions,omitempty"`
	DailyCalorieIntake     int      `json:"daily_calorie_intake" yaml:"daily_calorie_intake" validate:"required,min=1000,max=5000"`
	DailyProteinIntake     int      `json:"daily_protein_intake" yaml:"daily_protein_intake" validate:"required,min=30,max=500"`
	FoodsToAvoid           []string `json:"foods_to_avoid,omitempty" yaml:"foods_to_avoid,omitempty"`
	PreferredMealFrequency int      `json:"preferred_meal_frequency" yaml:"preferred_meal_frequency" validate:"required,min=1,max=6"`
	CurrentFitnessLevel    string   `json:"current_fitness_level" yaml:"current_fitness_level" validate:"required,oneof=Beginner Intermediate Advanced"`
	HealthConsiderations   []string `json:"health_considerations,omitempty" yaml:"health_considerations,omitempty"`
	InterestedActivities   []string `json:"interested_activities,omitempty" yaml:"interested_activities,omitempty"`
	DaysPerWeek            int      `json:"days_per_week" yaml:"days_per_week" validate:"required,min=1,max=7"`
	MedicalConditions      []string `json:"medical_conditions,omitempty" yaml:"medical_conditions,omitempty"`
	FoodAllergies          []string `json:"food_allergies,omitempty" yaml:"food_allergies,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the profile against its field rules. The returned error
// wraps ErrInvalidInput and lists every failing field.
func (p *UserProfile) Validate() error {
	var problems []string
	if p.DOB.IsZero() {
		problems = append(problems, "dob is required")
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return NewSubSystemError("profile", "UserProfile.Validate", ErrInvalidInput, err.Error())
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return NewSubSystemError("profile", "UserProfile.Validate", ErrInvalidInput, strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AgeAt returns the age in whole years on the given day. A birthday that has
// not yet been reached in now's year does not count. Never negative.
func (p *UserProfile) AgeAt(now time.Time) int {
	if p.DOB.IsZero() {
		return 0
	}
	dob := p.DOB.Time
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return max(age, 0)
}

// EffectiveUserID returns the profile's user id, or AnonymousUserID.
func (p *UserProfile) EffectiveUserID() string {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return AnonymousUserID
	}
	return p.UserID
}

// UserData is the denormalized profile snapshot sent with every chat
// message. Email and the raw date of birth are not included.
type UserData struct {
	Name                   string   `json:"name"`
	Age                    int      `json:"age"`
	Gender                 string   `json:"gender"`
	Height                 float64  `json:"height"`
	Weight                 float64  `json:"weight"`
	Region                 string   `json:"region"`
	Goals                  []string `json:"goals"`
	DietaryRestrictions    []string `json:"dietary_restrictions"`
	DailyCalorieIntake     int      `json:"daily_calorie_intake"`
	DailyProteinIntake     int      `json:"daily_protein_intake"`
	FoodsToAvoid           []string `json:"foods_to_avoid"`
	PreferredMealFrequency int      `json:"preferred_meal_frequency"`
	CurrentFitnessLevel    string   `json:"current_fitness_level"`
	HealthConsiderations   []string `json:"health_considerations"`
	InterestedActivities   []string `json:"interested_activities"`
	DaysPerWeek            int      `json:"days_per_week"`
	MedicalConditions      []string `json:"medical_conditions"`
	FoodAllergies          []string `json:"food_allergies"`
}

// Snapshot builds the UserData sent with a message at time now.
func (p *UserProfile) Snapshot(now time.Time) *UserData {
	return &UserData{
		Name:                   p.Name,
		Age:                    p.AgeAt(now),
		Gender:                 p.Gender,
		Height:                 p.Height,
		Weight:                 p.Weight,
		Region:                 p.Region,
		Goals:                  nonNil(p.Goals),
		DietaryRestrictions:    nonNil(p.DietaryRestrictions),
		DailyCalorieIntake:     p.DailyCalorieIntake,
		DailyProteinIntake:     p.DailyProteinIntake,
		FoodsToAvoid:           nonNil(p.FoodsToAvoid),
		PreferredMealFrequency: p.PreferredMealFrequency,
		CurrentFitnessLevel:    p.CurrentFitnessLevel,
		HealthConsiderations:   nonNil(p.HealthConsiderations),
		InterestedActivities:   nonNil(p.InterestedActivities),
		DaysPerWeek:            p.DaysPerWeek,
		MedicalConditions:      nonNil(p.MedicalConditions),
		FoodAllergies:          nonNil(p.FoodAllergies),
	}
}

// nonNil keeps empty lists as [] on the wire.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ProfileLines renders user data as "key: value" pairs in a stable order,
// skipping empty values. Used when building assistant prompts.
func (u *UserData) ProfileLines() []string {
	if u == nil {
		return nil
	}
	var lines []string
	add := func(key, value string) {
		if value != "" {
			lines = append(lines, key+": "+value)
		}
	}
	addInt := func(key string, v int) {
		if v != 0 {
			add(key, fmt.Sprint(v))
		}
	}
	addFloat := func(key string, v float64) {
		if v != 0 {
			add(key, fmt.Sprint(v))
		}
	}
	add("name", u.Name)
	addInt("age", u.Age)
	add("gender", u.Gender)
	addFloat("height", u.Height)
	addFloat("weight", u.Weight)
	add("region", u.Region)
	add("goals", strings.Join(u.Goals, ", "))
	add("dietary_restrictions", strings.Join(u.DietaryRestrictions, ", "))
	addInt("daily_calorie_intake", u.DailyCalorieIntake)
	addInt("daily_protein_intake", u.DailyProteinIntake)
	add("foods_to_avoid", strings.Join(u.FoodsToAvoid, ", "))
	addInt("preferred_meal_frequency", u.PreferredMealFrequency)
	add("current_fitness_level", u.CurrentFitnessLevel)
	add("health_considerations", strings.Join(u.HealthConsiderations, ", "))
	add("interested_activities", strings.Join(u.InterestedActivities, ", "))
	addInt("days_per_week", u.DaysPerWeek)
	add("medical_conditions", strings.Join(u.MedicalConditions, ", "))
	add("food_allergies", strings.Join(u.FoodAllergies, ", "))
	return lines
}
