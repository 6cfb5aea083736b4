package models

// Direction values exposed by the API
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// DefaultDelay is reported when no live delay is known for a line
const DefaultDelay = "PT0S"

// Stop is a transit stop as listed by GET /api/stops
type Stop struct {
	ID            string   `json:"id"`
	Name          *string  `json:"name"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
	PMRAccessible *bool    `json:"pmr_accessible"`
	ServiceInfo   *string  `json:"service_info"` // comma-separated lineCode:directionCode tokens
	HasElevator   *bool    `json:"has_elevator"`
	HasEscalator  *bool    `json:"has_escalator"`
	Address       *string  `json:"address"`
	Municipality  *string  `json:"municipality"`
	Zone          *string  `json:"zone"`
	GTFSStopID    *string  `json:"gtfs_stop_id,omitempty"`
}

// Station is a metro/tram station
type Station struct {
	ID           string   `json:"id"`
	StationAPIID *string  `json:"station_api_id"`
	Name         *string  `json:"name"`
	ServiceInfo  *string  `json:"service_info"`
	LastUpdate   *string  `json:"last_update"`
	Longitude    *float64 `json:"longitude"`
	Latitude     *float64 `json:"latitude"`
	StationID    *string  `json:"station_id"`
}

// Line is one direction/trace variant of a line. LineCode carries the sort
// code, which is what the viewer groups on.
type Line struct {
	ID              string  `json:"id"`
	LineName        *string `json:"line_name"`
	TraceCode       *string `json:"trace_code"` // serialized GeoJSON
	LineCode        *string `json:"line_code"`
	Category        string  `json:"category"`
	Color           *string `json:"color"`
	LineSortCode    *string `json:"line_sort_code"`
	DestinationName *string `json:"destination_name"`
	Direction       *string `json:"direction"`
	LineTypeName    *string `json:"line_type_name"`
}

// Vehicle is one live vehicle position
type Vehicle struct {
	VehicleRef          string   `json:"vehicle_ref"`
	Longitude           *float64 `json:"longitude"`
	Latitude            *float64 `json:"latitude"`
	Bearing             *float64 `json:"bearing"`
	Delay               *string  `json:"delay"`
	PublishedLineName   *string  `json:"published_line_name"`
	DestinationName     *string  `json:"destination_name"`
	LineRef             *string  `json:"line_ref"`
	DirectionRef        *string  `json:"direction_ref"`
	StopPointName       *string  `json:"stop_point_name"`
	ExpectedArrivalTime *string  `json:"expected_arrival_time"`
	DistanceFromStop    *float64 `json:"distance_from_stop"`
}

// Alert is one disruption with every line it affects
type Alert struct {
	Title              string   `json:"title"`
	Message            string   `json:"message"`
	SeverityType       *string  `json:"severity_type"`
	SeverityLevel      *int     `json:"severity_level"`
	LineCommercialName *string  `json:"line_commercial_name"` // first affected line
	AffectedLines      []string `json:"affected_lines"`
	LinesCount         int      `json:"lines_count"`
}

// NextPassage is one scheduled passage at a stop with the live delay of its line
type NextPassage struct {
	VehicleRef           *string  `json:"vehicle_ref"`
	LineRef              *string  `json:"line_ref"`
	DirectionRef         string   `json:"direction_ref"`
	DestinationName      *string  `json:"destination_name"`
	Delay                string   `json:"delay"`
	StopPointName        *string  `json:"stop_point_name"`
	ExpectedArrivalTime  *string  `json:"expected_arrival_time"`
	DistanceFromStop     *float64 `json:"distance_from_stop"`
	PublishedLineName    *string  `json:"published_line_name"`
	LineDestination      *string  `json:"line_destination"`
	ScheduledArrivalTime string   `json:"scheduled_arrival_time"`
	RouteColor           *string  `json:"route_color"`
	RouteTextColor       *string  `json:"route_text_color"`
}

// LineIcon maps a line code to its pictogram
type LineIcon struct {
	LineCode string `json:"code_ligne"`
	Mode     string `json:"picto_mode"`
	Icon     string `json:"picto_ligne"`
}
