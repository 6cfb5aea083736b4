// Package normalize maps provider records onto store entities.
//
// Every function null-coalesces optional fields. A record without a
// derivable natural key yields an error wrapping ErrMissingKey; callers skip
// such records and keep going.
package normalize

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
)

// ErrMissingKey marks a record whose natural key cannot be derived
var ErrMissingKey = errors.New("missing natural key")

// sortCodeRegex extracts the line sort code from a SIRI line ref
// (e.g. "ActIV:Line::C3:SYTRAL" -> "C3")
var sortCodeRegex = regexp.MustCompile(`::(.*?):`)

// LineSortCode returns the sort code embedded in a composite line ref, or ""
func LineSortCode(lineRef string) string {
	m := sortCodeRegex.FindStringSubmatch(lineRef)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// FormatColor turns "R G B" into "rgb(R, G, B)". Blank input yields nil.
func FormatColor(raw *string) *string {
	if raw == nil {
		return nil
	}
	parts := strings.Fields(*raw)
	if len(parts) == 0 {
		return nil
	}
	s := "rgb(" + strings.Join(parts, ", ") + ")"
	return &s
}

// GTFSStopID returns the last dot-separated segment of a WFS feature id
// ("tclarret.123456" -> "123456")
func GTFSStopID(featureID string) *string {
	id := featureID[strings.LastIndex(featureID, ".")+1:]
	if id == "" {
		return nil
	}
	return &id
}

// StopPointGTFSID returns the 4th colon-separated segment of a SIRI stop
// point ref ("TCL:StopPoint:Q:789012:" -> "789012")
func StopPointGTFSID(stopPointRef string) *string {
	parts := strings.Split(stopPointRef, ":")
	if len(parts) < 4 || parts[3] == "" {
		return nil
	}
	id := parts[3]
	return &id
}

func missingKey(entity, field string) error {
	return fmt.Errorf("%s: %w (%s)", entity, ErrMissingKey, field)
}

// Alert maps a REST alert record, renaming the French fields. Records
// without "n" are keyed by a hash of their content; only records that have
// neither an id nor a title or message are rejected.
func Alert(rec grandlyon.AlertRecord) (db.Alert, error) {
	var id string
	switch {
	case rec.N.Ptr() != nil:
		id = *rec.N.Ptr()
	case rec.Titre.Ptr() != nil || rec.Message.Ptr() != nil:
		id = AlertKey(rec)
	default:
		return db.Alert{}, missingKey("alert", "n")
	}
	return db.Alert{
		AlertID:            id,
		Type:               rec.Type.Ptr(),
		Cause:              rec.Cause.Ptr(),
		StartTime:          rec.Debut.Ptr(),
		EndTime:            rec.Fin.Ptr(),
		Mode:               rec.Mode.Ptr(),
		LineCommercialName: rec.LigneCom.Ptr(),
		LineCustomerName:   rec.LigneCli.Ptr(),
		Title:              rec.Titre.Ptr(),
		Message:            rec.Message.Ptr(),
		LastUpdate:         rec.LastUpdateFME.Ptr(),
		SeverityType:       rec.TypeSeverite.Ptr(),
		SeverityLevel:      rec.NiveauSeverite.Int(),
		ObjectType:         rec.TypeObjet.Ptr(),
		ObjectList:         rec.ListeObjet.Ptr(),
	}, nil
}

// AlertKey derives a stable id from the fields that identify a disruption:
// title, message, commercial line, start and severity type
func AlertKey(rec grandlyon.AlertRecord) string {
	h := sha1.New()
	for _, field := range []*grandlyon.Text{rec.Titre, rec.Message, rec.LigneCom, rec.Debut, rec.TypeSeverite} {
		if v := field.Ptr(); v != nil {
			h.Write([]byte(*v))
		}
		h.Write([]byte{0x1f})
	}
	return "sha1:" + hex.EncodeToString(h.Sum(nil))
}

// Station maps a tclstation feature
func Station(f grandlyon.Feature) (db.Station, error) {
	id := string(f.ID)
	if id == "" {
		return db.Station{}, missingKey("station", "id")
	}
	var props grandlyon.StationProperties
	if err := f.DecodeProperties(&props); err != nil {
		return db.Station{}, err
	}
	lon, lat := f.Point()
	return db.Station{
		ID:           id,
		StationAPIID: props.StationAPIID.Ptr(),
		Name:         props.Nom.Ptr(),
		ServiceInfo:  props.Desserte.Ptr(),
		LastUpdate:   props.LastUpdate.Ptr(),
		Longitude:    lon,
		Latitude:     lat,
		StationID:    props.StationAPIID.Ptr(),
	}, nil
}

// Stop maps a tclarret feature and derives its GTFS stop id
func Stop(f grandlyon.Feature) (db.Stop, error) {
	id := string(f.ID)
	if id == "" {
		return db.Stop{}, missingKey("stop", "id")
	}
	var props grandlyon.StopProperties
	if err := f.DecodeProperties(&props); err != nil {
		return db.Stop{}, err
	}
	lon, lat := f.Point()
	return db.Stop{
		ID:            id,
		Name:          props.Nom.Ptr(),
		ServiceInfo:   props.Desserte.Ptr(),
		PMRAccessible: props.PMR.Bool(),
		HasElevator:   props.Ascenseur.Bool(),
		HasEscalator:  props.Escalier.Bool(),
		Address:       props.Adresse.Ptr(),
		Municipality:  props.Commune.Ptr(),
		Zone:          props.Zone.Ptr(),
		Longitude:     lon,
		Latitude:      lat,
		GTFSStopID:    GTFSStopID(id),
		LastUpdate:    props.LastUpdate.Ptr(),
	}, nil
}

// Line maps a line feature of the given category. The geometry is kept as
// compact serialized GeoJSON.
func Line(f grandlyon.Feature, category grandlyon.Category) (db.Line, error) {
	id := string(f.ID)
	if id == "" {
		return db.Line{}, missingKey("line", "id")
	}
	var props grandlyon.LineProperties
	if err := f.DecodeProperties(&props); err != nil {
		return db.Line{}, err
	}
	return db.Line{
		ID:              id,
		LineName:        props.NomTrace.Ptr(),
		TraceCode:       serializeGeometry(f.Geometry),
		LineCode:        props.CodeLigne.Ptr(),
		TraceType:       props.TypeTrace.Ptr(),
		TraceName:       props.NomTrace.Ptr(),
		Direction:       props.Sens.Ptr(),
		OriginID:        props.Origine.Ptr(),
		DestinationID:   props.Destination.Ptr(),
		OriginName:      props.NomOrigine.Ptr(),
		DestinationName: props.NomDestination.Ptr(),
		TransportFamily: props.FamilleTransport.Ptr(),
		StartDate:       props.DateDebut.Ptr(),
		EndDate:         props.DateFin.Ptr(),
		LineTypeCode:    props.CodeTypeLigne.Ptr(),
		LineTypeName:    props.NomTypeLigne.Ptr(),
		PMRAccessible:   props.PMR.Bool(),
		LineSortCode:    props.Ligne.Ptr(),
		VersionName:     props.NomVersion.Ptr(),
		LastUpdate:      props.LastUpdate.Ptr(),
		Category:        string(category),
		Color:           FormatColor(props.Couleur.Ptr()),
	}, nil
}

// IconRows reads the ';'-delimited pictogram CSV, dropping the header row
func IconRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read icon csv: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// LineIcon maps one CSV row (code_ligne, picto_mode, picto_ligne).
// A .svg icon name is rewritten to .png.
func LineIcon(row []string) (db.LineIcon, error) {
	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		return db.LineIcon{}, missingKey("line icon", "code_ligne")
	}
	if len(row) < 3 {
		return db.LineIcon{}, fmt.Errorf("line icon %s: expected 3 columns, got %d", row[0], len(row))
	}
	icon := strings.TrimSpace(row[2])
	if strings.HasSuffix(icon, ".svg") {
		icon = strings.TrimSuffix(icon, ".svg") + ".png"
	}
	return db.LineIcon{
		LineCode: strings.TrimSpace(row[0]),
		Mode:     strings.TrimSpace(row[1]),
		Icon:     icon,
	}, nil
}

// LineIcons reads the whole CSV and fails on the first malformed row
func LineIcons(r io.Reader) ([]db.LineIcon, error) {
	rows, err := IconRows(r)
	if err != nil {
		return nil, err
	}
	icons := make([]db.LineIcon, 0, len(rows))
	for _, row := range rows {
		icon, err := LineIcon(row)
		if err != nil {
			return nil, err
		}
		icons = append(icons, icon)
	}
	return icons, nil
}

func serializeGeometry(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	s := buf.String()
	return &s
}
