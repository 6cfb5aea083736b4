// Package gtfsrt exports the live vehicle snapshot as a GTFS-realtime feed.
package gtfsrt

import (
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/normalize"
)

// ContentType is the media type of an encoded feed
const ContentType = "application/x-protobuf"

const realtimeVersion = "2.0"

// VehicleFeed builds a full-dataset FeedMessage with one VehiclePosition
// entity per located vehicle. Vehicles without coordinates are left out.
func VehicleFeed(vehicles []models.Vehicle, now time.Time) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(realtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	msg.Entity = make([]*gtfs.FeedEntity, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Latitude == nil || v.Longitude == nil {
			continue
		}
		msg.Entity = append(msg.Entity, vehicleEntity(v))
	}
	return msg
}

func vehicleEntity(v models.Vehicle) *gtfs.FeedEntity {
	position := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{Id: proto.String(v.VehicleRef)},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(*v.Latitude)),
			Longitude: proto.Float32(float32(*v.Longitude)),
		},
	}
	if v.Bearing != nil {
		position.Position.Bearing = proto.Float32(float32(*v.Bearing))
	}
	if v.DestinationName != nil {
		position.Vehicle.Label = proto.String(*v.DestinationName)
	}

	trip := &gtfs.TripDescriptor{}
	if v.LineRef != nil {
		if code := normalize.LineSortCode(*v.LineRef); code != "" {
			trip.RouteId = proto.String(code)
		}
	}
	if trip.RouteId == nil && v.PublishedLineName != nil {
		trip.RouteId = proto.String(*v.PublishedLineName)
	}
	if v.DirectionRef != nil {
		switch *v.DirectionRef {
		case models.DirectionOutbound:
			trip.DirectionId = proto.Uint32(0)
		case models.DirectionInbound:
			trip.DirectionId = proto.Uint32(1)
		}
	}
	if trip.RouteId != nil || trip.DirectionId != nil {
		position.Trip = trip
	}

	return &gtfs.FeedEntity{
		Id:      proto.String(v.VehicleRef),
		Vehicle: position,
	}
}

// Marshal encodes a feed in the protobuf wire format
func Marshal(msg *gtfs.FeedMessage) ([]byte, error) {
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GTFS-realtime feed: %w", err)
	}
	return b, nil
}
