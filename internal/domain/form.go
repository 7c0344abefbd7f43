package domain

// FormRow is one spreadsheet row replayed into the registration form.
type FormRow struct {
	Name                   string
	Bring                  string
	ParticipateInHackathon bool
	ArrivalTime            string
	Comments               string
}
