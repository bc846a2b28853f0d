package tesla

// Order is a single entry from the owner API orders list.
type Order struct {
	ReferenceNumber string   `json:"referenceNumber"`
	OrderStatus     string   `json:"orderStatus"`
	ModelCode       string   `json:"modelCode"`
	VIN             string   `json:"vin"`
	OptionCodeList  []string `json:"optionCodeList"`
}

// OrderDetail is the task breakdown returned by the order tasks
// gateway for a single reference number.
type OrderDetail struct {
	Tasks OrderTasks `json:"tasks"`
}

// OrderTasks groups the task sections the tracker cares about. The
// gateway returns many more sections; unknown ones are ignored.
type OrderTasks struct {
	Scheduling   SchedulingTask   `json:"scheduling"`
	Registration RegistrationTask `json:"registration"`
}

// SchedulingTask carries the delivery window shown in the app.
type SchedulingTask struct {
	DeliveryWindowDisplay  string `json:"deliveryWindowDisplay"`
	ApptDateTimeAddressStr string `json:"apptDateTimeAddressStr"`
}

// RegistrationTask lists the registration sub-steps, some of which can
// block delivery until the subscriber completes them.
type RegistrationTask struct {
	Tasks []RegistrationStep `json:"tasks"`
}

// RegistrationStep is one registration sub-step.
type RegistrationStep struct {
	Name     string `json:"name"`
	Complete bool   `json:"complete"`
	Status   string `json:"status"`
}

// DeliveryWindow returns the display window, or "Pending" when the
// gateway has not published one yet.
func (d *OrderDetail) DeliveryWindow() string {
	if d == nil || d.Tasks.Scheduling.DeliveryWindowDisplay == "" {
		return "Pending"
	}
	return d.Tasks.Scheduling.DeliveryWindowDisplay
}

// BlockingSteps returns the names of registration steps that are still
// incomplete and therefore require subscriber action.
func (d *OrderDetail) BlockingSteps() []string {
	if d == nil {
		return nil
	}
	var blocking []string
	for _, step := range d.Tasks.Registration.Tasks {
		if !step.Complete && step.Status != "COMPLETE" {
			blocking = append(blocking, step.Name)
		}
	}
	return blocking
}

// Vehicle is a single result from the inventory API.
type Vehicle struct {
	VIN            string            `json:"VIN"`
	Price          float64           `json:"Price"`
	OnTheRoadPrice float64           `json:"OnTheRoadPrice"`
	CurrencyCode   string            `json:"CurrencyCode"`
	TrimName       string            `json:"TrimName"`
	PaintColor     string            `json:"PaintColor"`
	City           string            `json:"City"`
	Market         string            `json:"Market"`
	OptionCodeList []string          `json:"OptionCodeList"`
	OptionCodeMap  map[string]string `json:"OptionCodeMap"`
}

// EffectivePrice prefers the on-the-road price when the market
// publishes one, falling back to the list price.
func (v *Vehicle) EffectivePrice() float64 {
	if v.OnTheRoadPrice > 0 {
		return v.OnTheRoadPrice
	}
	return v.Price
}

// Options returns the vehicle's option codes, preferring the code map
// over the flat list when both are present.
func (v *Vehicle) Options() []string {
	if len(v.OptionCodeMap) > 0 {
		codes := make([]string, 0, len(v.OptionCodeMap))
		for code := range v.OptionCodeMap {
			codes = append(codes, code)
		}
		return codes
	}
	return v.OptionCodeList
}

// OrderURL is the direct order page for an inventory vehicle.
func (v *Vehicle) OrderURL() string {
	market := v.Market
	if market == "" {
		market = "ES"
	}
	return "https://www.tesla.com/" + market + "/order/" + v.VIN + "?#aux-1-content"
}
