package models

// ValuedRecord is a CompanyRecord with every derived valuation field.
// A nil pointer means the value could not be computed for this row.
type ValuedRecord struct {
	CompanyRecord

	EnterpriseValue *float64 `json:"enterprise_value"`
	EBITDA          *float64 `json:"ebitda"`
	EVToEBITDA      *float64 `json:"ev_to_ebitda"`

	ValueEVEBITDA *float64 `json:"value_ev_ebitda"`
	ValueRevenue  *float64 `json:"value_revenue"`
	ValuePE       *float64 `json:"value_pe"`
	ValuePB       *float64 `json:"value_pb"`

	PBInputsDefaulted bool `json:"pb_inputs_defaulted"`

	FinalExpectedPrice *float64 `json:"final_expected_price"`
	GainPct            *float64 `json:"gain_pct"`

	// Failure is set when evaluating the row failed unexpectedly.
	Failure string `json:"failure,omitempty"`
}

// MethodValues returns the four per-method estimates in blend order.
func (v ValuedRecord) MethodValues() [4]*float64 {
	return [4]*float64{v.ValueEVEBITDA, v.ValueRevenue, v.ValuePE, v.ValuePB}
}

// ValuationSummary describes a single engine run over a universe.
type ValuationSummary struct {
	Rows             int            `json:"rows"`
	FullyValued      int            `json:"fully_valued"`
	AbsentFinalPrice int            `json:"absent_final_price"`
	AbsentByField    map[string]int `json:"absent_by_field"`
	Failures         int            `json:"failures"`
	DurationMillis   int64          `json:"duration_ms"`
}
