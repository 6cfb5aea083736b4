package grandlyon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Text is a scalar the provider sends either as a JSON string or a number
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// Ptr returns nil for an empty value
func (t *Text) Ptr() *string {
	if t == nil || *t == "" {
		return nil
	}
	s := string(*t)
	return &s
}

// Number is a numeric scalar that may arrive quoted. Values that do not
// parse are kept as invalid rather than failing the whole payload.
type Number struct {
	value float64
	valid bool
}

// NewNumber returns a valid Number
func NewNumber(f float64) *Number {
	return &Number{value: f, valid: true}
}

// UnmarshalJSON accepts numbers and numeric strings
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*n = Number{}
		return nil
	}
	*n = Number{value: f, valid: true}
	return nil
}

// Float returns nil when n is missing or invalid
func (n *Number) Float() *float64 {
	if n == nil || !n.valid {
		return nil
	}
	f := n.value
	return &f
}

// Int returns nil when n is missing or invalid; fractions are truncated
func (n *Number) Int() *int {
	if n == nil || !n.valid {
		return nil
	}
	i := int(n.value)
	return &i
}

// Flag is a boolean that may arrive as a bool, a number or a string
type Flag bool

// UnmarshalJSON accepts true/false, 1/0 and "true"/"1"/"oui"/"t"
func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "oui", "t", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Bool returns nil when f is nil
func (f *Flag) Bool() *bool {
	if f == nil {
		return nil
	}
	b := bool(*f)
	return &b
}

// Ref is the SIRI {"value": ...} wrapper
type Ref struct {
	Value Text `json:"value"`
}

// First returns the value of the first entry of a SIRI multilingual list
func First(refs []Ref) *string {
	if len(refs) == 0 {
		return nil
	}
	return refs[0].Value.Ptr()
}

// Ptr returns nil for a missing ref or an empty value
func (r *Ref) Ptr() *string {
	if r == nil {
		return nil
	}
	return r.Value.Ptr()
}

// VehicleActivity is one vehicle of a SIRI vehicle-monitoring delivery
type VehicleActivity struct {
	RecordedAtTime          *Text                    `json:"RecordedAtTime"`
	ValidUntilTime          *Text                    `json:"ValidUntilTime"`
	MonitoredVehicleJourney *MonitoredVehicleJourney `json:"MonitoredVehicleJourney"`
}

// MonitoredVehicleJourney describes the vehicle and its journey
type MonitoredVehicleJourney struct {
	LineRef                 *Ref                     `json:"LineRef"`
	DirectionRef            *Ref                     `json:"DirectionRef"`
	FramedVehicleJourneyRef *FramedVehicleJourneyRef `json:"FramedVehicleJourneyRef"`
	PublishedLineName       []Ref                    `json:"PublishedLineName"`
	DirectionName           []Ref                    `json:"DirectionName"`
	OperatorRef             *Ref                     `json:"OperatorRef"`
	DestinationRef          *Ref                     `json:"DestinationRef"`
	DestinationName         []Ref                    `json:"DestinationName"`
	VehicleLocation         *VehicleLocation         `json:"VehicleLocation"`
	Bearing                 *Number                  `json:"Bearing"`
	Delay                   *Text                    `json:"Delay"`
	VehicleRef              *Ref                     `json:"VehicleRef"`
	MonitoredCall           *MonitoredCall           `json:"MonitoredCall"`
}

// FramedVehicleJourneyRef identifies the dated journey the vehicle runs
type FramedVehicleJourneyRef struct {
	DataFrameRef           *Ref  `json:"DataFrameRef"`
	DatedVehicleJourneyRef *Text `json:"DatedVehicleJourneyRef"`
}

// VehicleLocation is a WGS84 point
type VehicleLocation struct {
	Longitude *Number `json:"Longitude"`
	Latitude  *Number `json:"Latitude"`
}

// MonitoredCall is the next stop the vehicle serves
type MonitoredCall struct {
	StopPointRef          *Ref    `json:"StopPointRef"`
	StopPointName         []Ref   `json:"StopPointName"`
	AimedArrivalTime      *Text   `json:"AimedArrivalTime"`
	ExpectedArrivalTime   *Text   `json:"ExpectedArrivalTime"`
	AimedDepartureTime    *Text   `json:"AimedDepartureTime"`
	ExpectedDepartureTime *Text   `json:"ExpectedDepartureTime"`
	DistanceFromStop      *Number `json:"DistanceFromStop"`
	Order                 *Number `json:"Order"`
}

// EstimatedVehicleJourney is one journey of a SIRI estimated-timetables frame
type EstimatedVehicleJourney struct {
	LineRef                *Ref            `json:"LineRef"`
	DirectionRef           *Ref            `json:"DirectionRef"`
	DatedVehicleJourneyRef *Ref            `json:"DatedVehicleJourneyRef"`
	DestinationRef         *Ref            `json:"DestinationRef"`
	EstimatedCalls         *EstimatedCalls `json:"EstimatedCalls"`
}

// EstimatedCalls wraps the call list
type EstimatedCalls struct {
	EstimatedCall []EstimatedCall `json:"EstimatedCall"`
}

// EstimatedCall is one stop of an estimated journey
type EstimatedCall struct {
	StopPointRef          *Ref    `json:"StopPointRef"`
	Order                 *Number `json:"Order"`
	AimedArrivalTime      *Text   `json:"AimedArrivalTime"`
	ExpectedArrivalTime   *Text   `json:"ExpectedArrivalTime"`
	AimedDepartureTime    *Text   `json:"AimedDepartureTime"`
	ExpectedDepartureTime *Text   `json:"ExpectedDepartureTime"`
}

// AlertRecord is one row of the traffic-alert REST dataset (French field names)
type AlertRecord struct {
	N              *Text   `json:"n"`
	Type           *Text   `json:"type"`
	Cause          *Text   `json:"cause"`
	Debut          *Text   `json:"debut"`
	Fin            *Text   `json:"fin"`
	Mode           *Text   `json:"mode"`
	LigneCom       *Text   `json:"ligne_com"`
	LigneCli       *Text   `json:"ligne_cli"`
	Titre          *Text   `json:"titre"`
	Message        *Text   `json:"message"`
	LastUpdateFME  *Text   `json:"last_update_fme"`
	NiveauSeverite *Number `json:"niveauseverite"`
	TypeSeverite   *Text   `json:"typeseverite"`
	TypeObjet      *Text   `json:"typeobjet"`
	ListeObjet     *Text   `json:"listeobjet"`
}

// Feature is one GeoJSON feature of a WFS FeatureCollection
type Feature struct {
	ID         Text            `json:"id"`
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// DecodeProperties unmarshals the feature properties into v
func (f Feature) DecodeProperties(v any) error {
	if len(f.Properties) == 0 || bytes.Equal(f.Properties, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(f.Properties, v); err != nil {
		return fmt.Errorf("failed to decode properties of %s: %w", f.ID, err)
	}
	return nil
}

// Point returns the [lon, lat] of a Point geometry. Missing or non-point
// geometries yield nils.
func (f Feature) Point() (lon, lat *float64) {
	var g struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if len(f.Geometry) == 0 || json.Unmarshal(f.Geometry, &g) != nil {
		return nil, nil
	}
	if len(g.Coordinates) < 2 {
		return nil, nil
	}
	return &g.Coordinates[0], &g.Coordinates[1]
}

// StationProperties are the tclstation layer attributes
type StationProperties struct {
	StationAPIID *Text `json:"station_api_id"`
	Nom          *Text `json:"nom"`
	Desserte     *Text `json:"desserte"`
	LastUpdate   *Text `json:"last_update"`
}

// StopProperties are the tclarret layer attributes
type StopProperties struct {
	Nom        *Text `json:"nom"`
	Desserte   *Text `json:"desserte"`
	PMR        *Flag `json:"pmr"`
	Ascenseur  *Flag `json:"ascenseur"`
	Escalier   *Flag `json:"escalier"`
	LastUpdate *Text `json:"last_update"`
	Adresse    *Text `json:"adresse"`
	Commune    *Text `json:"commune"`
	Zone       *Text `json:"zone"`
}

// LineProperties are the attributes shared by the four line layers
type LineProperties struct {
	CodeLigne        *Text `json:"code_ligne"`
	NomTrace         *Text `json:"nom_trace"`
	Ligne            *Text `json:"ligne"`
	LastUpdate       *Text `json:"last_update"`
	Couleur          *Text `json:"couleur"`
	TypeTrace        *Text `json:"type_trace"`
	Sens             *Text `json:"sens"`
	Origine          *Text `json:"origine"`
	Destination      *Text `json:"destination"`
	NomOrigine       *Text `json:"nom_origine"`
	NomDestination   *Text `json:"nom_destination"`
	FamilleTransport *Text `json:"famille_transport"`
	DateDebut        *Text `json:"date_debut"`
	DateFin          *Text `json:"date_fin"`
	CodeTypeLigne    *Text `json:"code_type_ligne"`
	NomTypeLigne     *Text `json:"nom_type_ligne"`
	PMR              *Flag `json:"pmr"`
	NomVersion       *Text `json:"nom_version"`
}
