package db

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceVehiclePositions purges vehicle_positions and loads the given fleet
// snapshot in the same transaction. Readers see either the previous snapshot
// or the new one, never an empty table. Duplicate vehicle refs in one batch
// resolve last-write-wins.
func (db *DB) ReplaceVehiclePositions(ctx context.Context, positions []VehiclePosition) error {
	return db.withTx(ctx, "replace_vehicle_positions", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vehicle_positions"); err != nil {
			return fmt.Errorf("failed to purge vehicle positions: %w", err)
		}
		if len(positions) == 0 {
			return nil
		}

		stmt, err := db.prepare(ctx, tx, `
			INSERT INTO vehicle_positions (
				vehicle_ref, recorded_at_time, valid_until_time, line_ref, direction_ref,
				dated_vehicle_journey_ref, published_line_name, direction_name, operator_ref,
				destination_ref, destination_name, longitude, latitude, bearing, delay,
				stop_point_ref, stop_point_name, aimed_arrival_time, expected_arrival_time,
				aimed_departure_time, expected_departure_time, distance_from_stop, stop_order
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (vehicle_ref) DO UPDATE SET
				recorded_at_time = excluded.recorded_at_time,
				valid_until_time = excluded.valid_until_time,
				line_ref = excluded.line_ref,
				direction_ref = excluded.direction_ref,
				dated_vehicle_journey_ref = excluded.dated_vehicle_journey_ref,
				published_line_name = excluded.published_line_name,
				direction_name = excluded.direction_name,
				operator_ref = excluded.operator_ref,
				destination_ref = excluded.destination_ref,
				destination_name = excluded.destination_name,
				longitude = excluded.longitude,
				latitude = excluded.latitude,
				bearing = excluded.bearing,
				delay = excluded.delay,
				stop_point_ref = excluded.stop_point_ref,
				stop_point_name = excluded.stop_point_name,
				aimed_arrival_time = excluded.aimed_arrival_time,
				expected_arrival_time = excluded.expected_arrival_time,
				aimed_departure_time = excluded.aimed_departure_time,
				expected_departure_time = excluded.expected_departure_time,
				distance_from_stop = excluded.distance_from_stop,
				stop_order = excluded.stop_order
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare vehicle statement: %w", err)
		}
		defer stmt.Close()

		for _, v := range positions {
			if _, err := stmt.ExecContext(ctx,
				v.VehicleRef, v.RecordedAtTime, v.ValidUntilTime, v.LineRef, v.DirectionRef,
				v.DatedVehicleJourneyRef, v.PublishedLineName, v.DirectionName, v.OperatorRef,
				v.DestinationRef, v.DestinationName, v.Longitude, v.Latitude, v.Bearing, v.Delay,
				v.StopPointRef, v.StopPointName, v.AimedArrivalTime, v.ExpectedArrivalTime,
				v.AimedDepartureTime, v.ExpectedDepartureTime, v.DistanceFromStop, v.StopOrder,
			); err != nil {
				return fmt.Errorf("failed to upsert vehicle %s: %w", v.VehicleRef, err)
			}
		}
		return nil
	})
}

// ReplaceEstimatedTimetables purges estimated calls and journeys, then loads
// the new journeys and their calls in one transaction. A call whose
// (journey, stop order) is already recorded is ignored.
func (db *DB) ReplaceEstimatedTimetables(ctx context.Context, journeys []EstimatedJourney) error {
	return db.withTx(ctx, "replace_estimated_timetables", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM estimated_calls"); err != nil {
			return fmt.Errorf("failed to purge estimated calls: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM estimated_vehicle_journeys"); err != nil {
			return fmt.Errorf("failed to purge estimated journeys: %w", err)
		}
		if len(journeys) == 0 {
			return nil
		}

		journeyStmt, err := db.prepare(ctx, tx, `
			INSERT INTO estimated_vehicle_journeys (line_ref, direction_ref, dated_vehicle_journey_ref, destination_ref)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (dated_vehicle_journey_ref) DO UPDATE SET
				line_ref = excluded.line_ref,
				direction_ref = excluded.direction_ref,
				destination_ref = excluded.destination_ref
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare journey statement: %w", err)
		}
		defer journeyStmt.Close()

		callStmt, err := db.prepare(ctx, tx, `
			INSERT INTO estimated_calls (
				estimated_vehicle_journey_id, stop_point_ref, gtfs_stop_id, stop_order,
				aimed_arrival_time, expected_arrival_time, aimed_departure_time, expected_departure_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (estimated_vehicle_journey_id, stop_order) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare call statement: %w", err)
		}
		defer callStmt.Close()

		for _, j := range journeys {
			var journeyID int64
			if err := journeyStmt.QueryRowContext(ctx,
				j.LineRef, j.DirectionRef, j.DatedVehicleJourneyRef, j.DestinationRef,
			).Scan(&journeyID); err != nil {
				return fmt.Errorf("failed to upsert journey %s: %w", j.DatedVehicleJourneyRef, err)
			}

			for _, c := range j.Calls {
				if _, err := callStmt.ExecContext(ctx,
					journeyID, c.StopPointRef, c.GTFSStopID, c.StopOrder,
					c.AimedArrivalTime, c.ExpectedArrivalTime, c.AimedDepartureTime, c.ExpectedDepartureTime,
				); err != nil {
					return fmt.Errorf("failed to insert call for journey %s: %w", j.DatedVehicleJourneyRef, err)
				}
			}
		}
		return nil
	})
}
