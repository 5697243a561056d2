package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/parcel-delivery/internal/geo"
)

// ErrNoResult is returned when Mapbox answers but has nothing for the query.
var ErrNoResult = errors.New("routing: no result")

// MapboxClient performs geocoding and driving distance lookups against the Mapbox REST API.
type MapboxClient struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewMapboxClient(endpoint, token string) *MapboxClient {
	return &MapboxClient{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Geocode resolves a free-text Kenyan address to a coordinate, biased towards Nairobi.
func (m *MapboxClient) Geocode(ctx context.Context, address string) (geo.Coord, error) {
	q := url.Values{}
	q.Set("access_token", m.Token)
	q.Set("country", "KE")
	q.Set("proximity", fmt.Sprintf("%.4f,%.4f", geo.Nairobi.Lon, geo.Nairobi.Lat))
	q.Set("limit", "1")
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.Endpoint, url.PathEscape(address), q.Encode())

	var out struct {
		Features []struct {
			Center []float64 `json:"center"`
		} `json:"features"`
	}
	if err := m.get(ctx, u, &out); err != nil {
		return geo.Coord{}, err
	}
	if len(out.Features) == 0 || len(out.Features[0].Center) < 2 {
		return geo.Coord{}, fmt.Errorf("geocode %q: %w", address, ErrNoResult)
	}
	c := out.Features[0].Center
	return geo.Coord{Lat: c[1], Lon: c[0]}, nil
}

// DrivingKm queries the directions API between points and returns the route length in km.
func (m *MapboxClient) DrivingKm(ctx context.Context, from, to geo.Coord) (float64, error) {
	// /directions/v5/mapbox/driving/{lon1},{lat1};{lon2},{lat2}?overview=false
	u := fmt.Sprintf("%s/directions/v5/mapbox/driving/%.6f,%.6f;%.6f,%.6f?overview=false&access_token=%s",
		m.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat, url.QueryEscape(m.Token))
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := m.get(ctx, u, &out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("mapbox no route: %v: %w", out.Code, ErrNoResult)
	}
	return out.Routes[0].Distance / 1000, nil
}

func (m *MapboxClient) get(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mapbox: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
