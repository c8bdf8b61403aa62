package models

// OrderUpdateRequest is the flat record of the data-entry form. All fields are
// optional free text; the remote endpoint owns validation.
type OrderUpdateRequest struct {
	SessionRef
	OrderID      string `json:"order_id"`
	FullName     string `json:"full_name"`
	FatherName   string `json:"father_name"`
	MotherName   string `json:"mother_name"`
	CNICNumber   string `json:"cnic_number"`
	PhoneNumber  string `json:"phone_number"`
	IssueDate    string `json:"issue_date"`
	ExpiryDate   string `json:"expiry_date"`
	BirthDate    string `json:"birth_date"`
	Birthplace   string `json:"birthplace"`
	IncomeSource string `json:"income_source"`
	Income       string `json:"income"`
	Address      string `json:"address"`
}

// FormFields flattens the request into outbound multipart field values.
// Empty fields are omitted entirely; the upstream update is partial.
func (r OrderUpdateRequest) FormFields() map[string]string {
	all := map[string]string{
		"order_id":      r.OrderID,
		"full_name":     r.FullName,
		"father_name":   r.FatherName,
		"mother_name":   r.MotherName,
		"cnic_number":   r.CNICNumber,
		"phone_number":  r.PhoneNumber,
		"issue_date":    r.IssueDate,
		"expiry_date":   r.ExpiryDate,
		"birth_date":    r.BirthDate,
		"birthplace":    r.Birthplace,
		"income_source": r.IncomeSource,
		"income":        r.Income,
		"address":       r.Address,
	}
	fields := map[string]string{}
	for name, value := range all {
		if value != "" {
			fields[name] = value
		}
	}
	return fields
}

// OrderUpdateResponse surfaces the upstream result to the form.
type OrderUpdateResponse struct {
	Message string `json:"message"`
}
