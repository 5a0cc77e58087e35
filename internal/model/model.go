package model

// Push event names.
const (
	EventWeatherUpdate = "weather_update"
	EventWeatherDelete = "weather_delete"
)

// Weather contains weather conditions fetched for a city, not yet stored.
type Weather struct {
	City      string  `json:"city"`
	Humidity  int     `json:"humidity"`
	Cloud     int     `json:"cloud"`
	WindSpeed float64 `json:"wind_speed"`
}

// Reading is a stored weather observation.
type Reading struct {
	ID        int64   `json:"id" bson:"_id"`
	City      string  `json:"city" bson:"city"`
	Humidity  int     `json:"humidity" bson:"humidity"`
	Cloud     int     `json:"cloud" bson:"cloud"`
	WindSpeed float64 `json:"wind_speed" bson:"wind_speed"`
}

// NewReading creates reading from weather with the id assigned by storage.
func NewReading(id int64, w *Weather) *Reading {
	return &Reading{
		ID:        id,
		City:      w.City,
		Humidity:  w.Humidity,
		Cloud:     w.Cloud,
		WindSpeed: w.WindSpeed,
	}
}

// DeletedReading is the payload of weather_delete event.
type DeletedReading struct {
	ID int64 `json:"id"`
}

// Event is a message pushed to connected clients.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}
