package db

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertStops inserts or updates stops keyed by id. Every mutable column is
// overwritten, including with NULL.
func (db *DB) UpsertStops(ctx context.Context, stops []Stop) error {
	if len(stops) == 0 {
		return nil
	}
	return db.withTx(ctx, "upsert_stops", func(tx *sql.Tx) error {
		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO stops (
				id, name, service_info, pmr_accessible, has_elevator, has_escalator,
				address, municipality, zone, longitude, latitude, gtfs_stop_id,
				last_update, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				service_info = excluded.service_info,
				pmr_accessible = excluded.pmr_accessible,
				has_elevator = excluded.has_elevator,
				has_escalator = excluded.has_escalator,
				address = excluded.address,
				municipality = excluded.municipality,
				zone = excluded.zone,
				longitude = excluded.longitude,
				latitude = excluded.latitude,
				gtfs_stop_id = excluded.gtfs_stop_id,
				last_update = excluded.last_update,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare stop statement: %w", err)
		}
		defer stmt.Close()

		updatedAt := nowUTC()
		for _, s := range stops {
			if _, err := stmt.ExecContext(ctx,
				s.ID, s.Name, s.ServiceInfo, s.PMRAccessible, s.HasElevator, s.HasEscalator,
				s.Address, s.Municipality, s.Zone, s.Longitude, s.Latitude, s.GTFSStopID,
				s.LastUpdate, updatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert stop %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// UpsertStations inserts or updates stations keyed by id
func (db *DB) UpsertStations(ctx context.Context, stations []Station) error {
	if len(stations) == 0 {
		return nil
	}
	return db.withTx(ctx, "upsert_stations", func(tx *sql.Tx) error {
		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO stations (
				id, station_api_id, name, service_info, last_update,
				longitude, latitude, station_id, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				station_api_id = excluded.station_api_id,
				name = excluded.name,
				service_info = excluded.service_info,
				last_update = excluded.last_update,
				longitude = excluded.longitude,
				latitude = excluded.latitude,
				station_id = excluded.station_id,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare station statement: %w", err)
		}
		defer stmt.Close()

		updatedAt := nowUTC()
		for _, s := range stations {
			if _, err := stmt.ExecContext(ctx,
				s.ID, s.StationAPIID, s.Name, s.ServiceInfo, s.LastUpdate,
				s.Longitude, s.Latitude, s.StationID, updatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert station %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// UpsertLines inserts or updates line variants keyed by feature id
func (db *DB) UpsertLines(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	return db.withTx(ctx, "upsert_lines", func(tx *sql.Tx) error {
		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO lines (
				id, line_name, trace_code, line_code, trace_type, trace_name,
				direction, origin_id, destination_id, origin_name, destination_name,
				transport_family, start_date, end_date, line_type_code, line_type_name,
				pmr_accessible, line_sort_code, version_name, last_update, category, color,
				updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				line_name = excluded.line_name,
				trace_code = excluded.trace_code,
				line_code = excluded.line_code,
				trace_type = excluded.trace_type,
				trace_name = excluded.trace_name,
				direction = excluded.direction,
				origin_id = excluded.origin_id,
				destination_id = excluded.destination_id,
				origin_name = excluded.origin_name,
				destination_name = excluded.destination_name,
				transport_family = excluded.transport_family,
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				line_type_code = excluded.line_type_code,
				line_type_name = excluded.line_type_name,
				pmr_accessible = excluded.pmr_accessible,
				line_sort_code = excluded.line_sort_code,
				version_name = excluded.version_name,
				last_update = excluded.last_update,
				category = excluded.category,
				color = excluded.color,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare line statement: %w", err)
		}
		defer stmt.Close()

		updatedAt := nowUTC()
		for _, l := range lines {
			if _, err := stmt.ExecContext(ctx,
				l.ID, l.LineName, l.TraceCode, l.LineCode, l.TraceType, l.TraceName,
				l.Direction, l.OriginID, l.DestinationID, l.OriginName, l.DestinationName,
				l.TransportFamily, l.StartDate, l.EndDate, l.LineTypeCode, l.LineTypeName,
				l.PMRAccessible, l.LineSortCode, l.VersionName, l.LastUpdate, l.Category, l.Color,
				updatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert line %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// UpsertAlerts inserts or updates alerts keyed by alert_id
func (db *DB) UpsertAlerts(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return db.withTx(ctx, "upsert_alerts", func(tx *sql.Tx) error {
		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO alerts (
				alert_id, type, cause, start_time, end_time, mode,
				line_commercial_name, line_customer_name, title, message,
				last_update, severity_type, severity_level, object_type, object_list,
				updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (alert_id) DO UPDATE SET
				type = excluded.type,
				cause = excluded.cause,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				mode = excluded.mode,
				line_commercial_name = excluded.line_commercial_name,
				line_customer_name = excluded.line_customer_name,
				title = excluded.title,
				message = excluded.message,
				last_update = excluded.last_update,
				severity_type = excluded.severity_type,
				severity_level = excluded.severity_level,
				object_type = excluded.object_type,
				object_list = excluded.object_list,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare alert statement: %w", err)
		}
		defer stmt.Close()

		updatedAt := nowUTC()
		for _, a := range alerts {
			if _, err := stmt.ExecContext(ctx,
				a.AlertID, a.Type, a.Cause, a.StartTime, a.EndTime, a.Mode,
				a.LineCommercialName, a.LineCustomerName, a.Title, a.Message,
				a.LastUpdate, a.SeverityType, a.SeverityLevel, a.ObjectType, a.ObjectList,
				updatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert alert %s: %w", a.AlertID, err)
			}
		}
		return nil
	})
}

// UpsertLineIcons inserts or updates icon mappings keyed by line code
func (db *DB) UpsertLineIcons(ctx context.Context, icons []LineIcon) error {
	if len(icons) == 0 {
		return nil
	}
	return db.withTx(ctx, "upsert_line_icons", func(tx *sql.Tx) error {
		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO line_icon_mapping (code_ligne, picto_mode, picto_ligne)
			VALUES (?, ?, ?)
			ON CONFLICT (code_ligne) DO UPDATE SET
				picto_mode = excluded.picto_mode,
				picto_ligne = excluded.picto_ligne
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare line icon statement: %w", err)
		}
		defer stmt.Close()

		for _, icon := range icons {
			if _, err := stmt.ExecContext(ctx, icon.LineCode, icon.Mode, icon.Icon); err != nil {
				return fmt.Errorf("failed to upsert line icon %s: %w", icon.LineCode, err)
			}
		}
		return nil
	})
}
