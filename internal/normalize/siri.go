package normalize

import (
	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
)

// SIRI field names reported in Extraction.Missing
const (
	FieldRecordedAtTime          = "RecordedAtTime"
	FieldValidUntilTime          = "ValidUntilTime"
	FieldMonitoredVehicleJourney = "MonitoredVehicleJourney"
	FieldVehicleRef              = "VehicleRef"
	FieldLineRef                 = "LineRef"
	FieldDirectionRef            = "DirectionRef"
	FieldDatedVehicleJourneyRef  = "DatedVehicleJourneyRef"
	FieldPublishedLineName       = "PublishedLineName"
	FieldDirectionName           = "DirectionName"
	FieldOperatorRef             = "OperatorRef"
	FieldDestinationRef          = "DestinationRef"
	FieldDestinationName         = "DestinationName"
	FieldLongitude               = "VehicleLocation.Longitude"
	FieldLatitude                = "VehicleLocation.Latitude"
	FieldBearing                 = "Bearing"
	FieldDelay                   = "Delay"
	FieldMonitoredCall           = "MonitoredCall"
	FieldStopPointRef            = "MonitoredCall.StopPointRef"
	FieldStopPointName           = "MonitoredCall.StopPointName"
	FieldAimedArrivalTime        = "MonitoredCall.AimedArrivalTime"
	FieldExpectedArrivalTime     = "MonitoredCall.ExpectedArrivalTime"
	FieldAimedDepartureTime      = "MonitoredCall.AimedDepartureTime"
	FieldExpectedDepartureTime   = "MonitoredCall.ExpectedDepartureTime"
	FieldDistanceFromStop        = "MonitoredCall.DistanceFromStop"
	FieldOrder                   = "MonitoredCall.Order"
	FieldEstimatedCalls          = "EstimatedCalls"
)

// Extraction records which optional SIRI fields a record lacked
type Extraction struct {
	Missing []string
}

// Has reports whether field was present
func (e Extraction) Has(field string) bool {
	for _, m := range e.Missing {
		if m == field {
			return false
		}
	}
	return true
}

// Complete reports whether every extracted field was present
func (e Extraction) Complete() bool {
	return len(e.Missing) == 0
}

// pick returns v and notes field as missing when v is nil
func pick[T any](e *Extraction, field string, v *T) *T {
	if v == nil {
		e.Missing = append(e.Missing, field)
	}
	return v
}

func monitoredJourney(a grandlyon.VehicleActivity, e *Extraction) *grandlyon.MonitoredVehicleJourney {
	if a.MonitoredVehicleJourney == nil {
		e.Missing = append(e.Missing, FieldMonitoredVehicleJourney)
		return &grandlyon.MonitoredVehicleJourney{}
	}
	return a.MonitoredVehicleJourney
}

func monitoredCall(j *grandlyon.MonitoredVehicleJourney, e *Extraction) *grandlyon.MonitoredCall {
	if j.MonitoredCall == nil {
		e.Missing = append(e.Missing, FieldMonitoredCall)
		return &grandlyon.MonitoredCall{}
	}
	return j.MonitoredCall
}

func vehicleLocation(j *grandlyon.MonitoredVehicleJourney) *grandlyon.VehicleLocation {
	if j.VehicleLocation == nil {
		return &grandlyon.VehicleLocation{}
	}
	return j.VehicleLocation
}

func datedJourneyRef(j *grandlyon.MonitoredVehicleJourney) *string {
	if j.FramedVehicleJourneyRef == nil {
		return nil
	}
	return j.FramedVehicleJourneyRef.DatedVehicleJourneyRef.Ptr()
}

// VehiclePosition maps one SIRI vehicle activity. VehicleRef is the natural
// key; every other field is optional and reported in the Extraction when absent.
func VehiclePosition(a grandlyon.VehicleActivity) (db.VehiclePosition, Extraction, error) {
	var ex Extraction
	j := monitoredJourney(a, &ex)

	ref := pick(&ex, FieldVehicleRef, j.VehicleRef.Ptr())
	if ref == nil {
		return db.VehiclePosition{}, ex, missingKey("vehicle", FieldVehicleRef)
	}

	call := monitoredCall(j, &ex)
	loc := vehicleLocation(j)

	return db.VehiclePosition{
		VehicleRef:             *ref,
		RecordedAtTime:         pick(&ex, FieldRecordedAtTime, a.RecordedAtTime.Ptr()),
		ValidUntilTime:         pick(&ex, FieldValidUntilTime, a.ValidUntilTime.Ptr()),
		LineRef:                pick(&ex, FieldLineRef, j.LineRef.Ptr()),
		DirectionRef:           pick(&ex, FieldDirectionRef, j.DirectionRef.Ptr()),
		DatedVehicleJourneyRef: pick(&ex, FieldDatedVehicleJourneyRef, datedJourneyRef(j)),
		PublishedLineName:      pick(&ex, FieldPublishedLineName, grandlyon.First(j.PublishedLineName)),
		DirectionName:          pick(&ex, FieldDirectionName, grandlyon.First(j.DirectionName)),
		OperatorRef:            pick(&ex, FieldOperatorRef, j.OperatorRef.Ptr()),
		DestinationRef:         pick(&ex, FieldDestinationRef, j.DestinationRef.Ptr()),
		DestinationName:        pick(&ex, FieldDestinationName, grandlyon.First(j.DestinationName)),
		Longitude:              pick(&ex, FieldLongitude, loc.Longitude.Float()),
		Latitude:               pick(&ex, FieldLatitude, loc.Latitude.Float()),
		Bearing:                pick(&ex, FieldBearing, j.Bearing.Float()),
		Delay:                  pick(&ex, FieldDelay, j.Delay.Ptr()),
		StopPointRef:           pick(&ex, FieldStopPointRef, call.StopPointRef.Ptr()),
		StopPointName:          pick(&ex, FieldStopPointName, grandlyon.First(call.StopPointName)),
		AimedArrivalTime:       pick(&ex, FieldAimedArrivalTime, call.AimedArrivalTime.Ptr()),
		ExpectedArrivalTime:    pick(&ex, FieldExpectedArrivalTime, call.ExpectedArrivalTime.Ptr()),
		AimedDepartureTime:     pick(&ex, FieldAimedDepartureTime, call.AimedDepartureTime.Ptr()),
		ExpectedDepartureTime:  pick(&ex, FieldExpectedDepartureTime, call.ExpectedDepartureTime.Ptr()),
		DistanceFromStop:       pick(&ex, FieldDistanceFromStop, call.DistanceFromStop.Float()),
		StopOrder:              pick(&ex, FieldOrder, call.Order.Int()),
	}, ex, nil
}

// EstimatedJourney maps one SIRI estimated vehicle journey and its calls.
// The GTFS stop id of each call comes from its stop point ref, and the
// expected arrival falls back to the aimed arrival.
func EstimatedJourney(j grandlyon.EstimatedVehicleJourney) (db.EstimatedJourney, Extraction, error) {
	var ex Extraction

	ref := pick(&ex, FieldDatedVehicleJourneyRef, j.DatedVehicleJourneyRef.Ptr())
	if ref == nil {
		return db.EstimatedJourney{}, ex, missingKey("estimated journey", FieldDatedVehicleJourneyRef)
	}

	journey := db.EstimatedJourney{
		DatedVehicleJourneyRef: *ref,
		LineRef:                pick(&ex, FieldLineRef, j.LineRef.Ptr()),
		DirectionRef:           pick(&ex, FieldDirectionRef, j.DirectionRef.Ptr()),
		DestinationRef:         pick(&ex, FieldDestinationRef, j.DestinationRef.Ptr()),
	}

	if j.EstimatedCalls == nil {
		ex.Missing = append(ex.Missing, FieldEstimatedCalls)
		return journey, ex, nil
	}

	journey.Calls = make([]db.EstimatedCall, 0, len(j.EstimatedCalls.EstimatedCall))
	for _, c := range j.EstimatedCalls.EstimatedCall {
		journey.Calls = append(journey.Calls, estimatedCall(c))
	}
	return journey, ex, nil
}

func estimatedCall(c grandlyon.EstimatedCall) db.EstimatedCall {
	call := db.EstimatedCall{
		StopPointRef:          c.StopPointRef.Ptr(),
		StopOrder:             c.Order.Int(),
		AimedArrivalTime:      c.AimedArrivalTime.Ptr(),
		ExpectedArrivalTime:   c.ExpectedArrivalTime.Ptr(),
		AimedDepartureTime:    c.AimedDepartureTime.Ptr(),
		ExpectedDepartureTime: c.ExpectedDepartureTime.Ptr(),
	}
	if call.StopPointRef != nil {
		call.GTFSStopID = StopPointGTFSID(*call.StopPointRef)
	}
	if call.ExpectedArrivalTime == nil {
		call.ExpectedArrivalTime = call.AimedArrivalTime
	}
	return call
}
