package tariff

// Frequency is how often a tariff is billed.
type Frequency string

const (
	PerTerm  Frequency = "per_term"
	PerMonth Frequency = "per_month"
	PerYear  Frequency = "per_year"
	OneTime  Frequency = "one_time"
)

var Frequencies = []Frequency{PerTerm, PerMonth, PerYear, OneTime}

func (f Frequency) IsValid() bool {
	switch f {
	case PerTerm, PerMonth, PerYear, OneTime:
		return true
	}
	return false
}

func (f Frequency) Label() string {
	switch f {
	case PerTerm:
		return "Per Term"
	case PerMonth:
		return "Per Month"
	case PerYear:
		return "Per Year"
	case OneTime:
		return "One Time"
	}
	return string(f)
}

func (f Frequency) Color() string {
	switch f {
	case PerTerm:
		return "blue"
	case PerMonth:
		return "green"
	case PerYear:
		return "purple"
	case OneTime:
		return "orange"
	}
	return "gray"
}

// AppliesTo reports whether a tariff of this frequency is billed for a period.
// Annual periods (no term) bill everything; term periods bill yearly fees on the first term only.
func (f Frequency) AppliesTo(termBill, firstTerm bool) bool {
	if !termBill {
		return true
	}
	if f == PerYear {
		return firstTerm
	}
	return f.IsValid()
}

// Occurrences returns how many times a tariff of this frequency is charged on a bill
// covering `months` calendar months.
func (f Frequency) Occurrences(months int) int {
	if f == PerMonth && months > 1 {
		return months
	}
	return 1
}

// Type is the category of a tariff.
type Type string

const (
	Tuition     Type = "tuition"
	ActivityFee Type = "activity_fee"
	Transport   Type = "transport"
	Meal        Type = "meal"
	Other       Type = "other"
)

var Types = []Type{Tuition, ActivityFee, Transport, Meal, Other}

func (t Type) IsValid() bool {
	switch t {
	case Tuition, ActivityFee, Transport, Meal, Other:
		return true
	}
	return false
}

func (t Type) Label() string {
	switch t {
	case Tuition:
		return "Tuition"
	case ActivityFee:
		return "Activity Fee"
	case Transport:
		return "Transport"
	case Meal:
		return "Meal"
	case Other:
		return "Other"
	}
	return string(t)
}

func (t Type) Color() string {
	switch t {
	case Tuition:
		return "indigo"
	case ActivityFee:
		return "teal"
	case Transport:
		return "yellow"
	case Meal:
		return "red"
	}
	return "gray"
}

// Option describes an enum value for select inputs.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type Options struct {
	Frequencies []Option `json:"frequencies"`
	Types       []Option `json:"types"`
}

func GetOptions() Options {
	opts := Options{
		Frequencies: make([]Option, 0, len(Frequencies)),
		Types:       make([]Option, 0, len(Types)),
	}
	for _, f := range Frequencies {
		opts.Frequencies = append(opts.Frequencies, Option{Value: string(f), Label: f.Label(), Color: f.Color()})
	}
	for _, t := range Types {
		opts.Types = append(opts.Types, Option{Value: string(t), Label: t.Label(), Color: t.Color()})
	}
	return opts
}
