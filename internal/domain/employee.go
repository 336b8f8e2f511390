package domain

// EmployeeRole enumerates directory roles relevant to routing.
type EmployeeRole string

const (
	EmployeeRoleExpert     EmployeeRole = "EXPERT"
	EmployeeRoleTeamLead   EmployeeRole = "TEAM_LEAD"
	EmployeeRoleSupervisor EmployeeRole = "SUPERVISOR"
)

// Availability enumerates directory presence states.
type Availability string

const (
	AvailabilityAvailable    Availability = "AVAILABLE"
	AvailabilityBusy         Availability = "BUSY"
	AvailabilityInMeeting    Availability = "IN_MEETING"
	AvailabilityDoNotDisturb Availability = "DO_NOT_DISTURB"
	AvailabilityOffline      Availability = "OFFLINE"
)

// Employee is the directory read model. The engine never mutates it; the
// only write it performs is appending the chosen id to a ticket's
// assignment history.
type Employee struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ExpertiseTags []string     `json:"expertise_tags"`
	Availability  Availability `json:"availability"`
	Role          EmployeeRole `json:"role"`
}
