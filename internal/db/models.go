package db

import "time"

// Stop is a physical transit stop from the WFS tclarret layer
type Stop struct {
	ID            string
	Name          *string
	ServiceInfo   *string // comma-separated lineCode:directionCode tokens
	PMRAccessible *bool
	HasElevator   *bool
	HasEscalator  *bool
	Address       *string
	Municipality  *string
	Zone          *string
	Longitude     *float64
	Latitude      *float64
	GTFSStopID    *string
	LastUpdate    *string
}

// Station is a metro/tram station from the WFS tclstation layer
type Station struct {
	ID           string
	StationAPIID *string
	Name         *string
	ServiceInfo  *string
	LastUpdate   *string
	Longitude    *float64
	Latitude     *float64
	StationID    *string
}

// Line is one direction/trace variant of a commercial line
type Line struct {
	ID              string
	LineName        *string
	TraceCode       *string // serialized GeoJSON geometry
	LineCode        *string
	TraceType       *string
	TraceName       *string
	Direction       *string
	OriginID        *string
	DestinationID   *string
	OriginName      *string
	DestinationName *string
	TransportFamily *string
	StartDate       *string
	EndDate         *string
	LineTypeCode    *string
	LineTypeName    *string
	PMRAccessible   *bool
	LineSortCode    *string
	VersionName     *string
	LastUpdate      *string
	Category        string
	Color           *string
}

// Alert is a traffic disruption notice
type Alert struct {
	AlertID            string
	Type               *string
	Cause              *string
	StartTime          *string
	EndTime            *string
	Mode               *string
	LineCommercialName *string
	LineCustomerName   *string
	Title              *string
	Message            *string
	LastUpdate         *string
	SeverityType       *string
	SeverityLevel      *int
	ObjectType         *string
	ObjectList         *string
}

// LineIcon maps a line code to its pictogram files
type LineIcon struct {
	LineCode string
	Mode     string
	Icon     string
}

// VehiclePosition is one vehicle of the current fleet snapshot
type VehiclePosition struct {
	VehicleRef             string
	RecordedAtTime         *string
	ValidUntilTime         *string
	LineRef                *string
	DirectionRef           *string
	DatedVehicleJourneyRef *string
	PublishedLineName      *string
	DirectionName          *string
	OperatorRef            *string
	DestinationRef         *string
	DestinationName        *string
	Longitude              *float64
	Latitude               *float64
	Bearing                *float64
	Delay                  *string // ISO-8601 duration, e.g. PT5M
	StopPointRef           *string
	StopPointName          *string
	AimedArrivalTime       *string
	ExpectedArrivalTime    *string
	AimedDepartureTime     *string
	ExpectedDepartureTime  *string
	DistanceFromStop       *float64
	StopOrder              *int
}

// EstimatedJourney is a dated vehicle journey with its estimated calls
type EstimatedJourney struct {
	DatedVehicleJourneyRef string
	LineRef                *string
	DirectionRef           *string
	DestinationRef         *string
	Calls                  []EstimatedCall
}

// EstimatedCall is one stop of an estimated journey
type EstimatedCall struct {
	StopPointRef          *string
	GTFSStopID            *string
	StopOrder             *int
	AimedArrivalTime      *string
	ExpectedArrivalTime   *string
	AimedDepartureTime    *string
	ExpectedDepartureTime *string
}

// Run is one execution of an ingestion job
type Run struct {
	ID         string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Written    int
	Skipped    int
	Error      string
}
