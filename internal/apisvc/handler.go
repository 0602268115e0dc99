package apisvc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agigante80/VPNSentinel-sub000/internal/metrics"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// keepaliveResp is the body of a successful keepalive response.
type keepaliveResp struct {
	Status     string `json:"status"`
	ServerTime string `json:"server_time"`
}

// serveKeepalive is the handler of POST {api_path}/keepalive.
func (svc *Service) serveKeepalive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, int64(svc.maxBodySize.Bytes()))

	k := &vsent.Keepalive{}
	err := json.NewDecoder(r.Body).Decode(k)
	if err != nil {
		metrics.KeepalivesTotal.WithLabelValues("invalid").Inc()
		vsenthttp.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", err.Error())

		return
	}

	evs, err := svc.registry.Apply(ctx, k)
	if err != nil {
		metrics.KeepalivesTotal.WithLabelValues("invalid").Inc()
		vsenthttp.WriteJSONError(w, r, http.StatusBadRequest, "invalid_keepalive", err.Error())

		return
	}

	metrics.KeepalivesTotal.WithLabelValues("accepted").Inc()

	for _, ev := range evs {
		svc.notifier.NotifyEvent(ctx, ev)
	}

	vsenthttp.WriteJSON(w, r, http.StatusOK, &keepaliveResp{
		Status:     "ok",
		ServerTime: svc.clock.Now().UTC().Format(time.RFC3339),
	})
}

// statusResp is the body of a status response.
type statusResp struct {
	Server  *selfview.View  `json:"server"`
	Clients []*clientStatus `json:"clients"`
}

// clientStatus is one client entry of a status response.
type clientStatus struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	PublicIP    string `json:"public_ip"`
	State       string `json:"state"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Org         string `json:"org"`
	DNSLocation string `json:"dns_location"`
	DNSColo     string `json:"dns_colo"`
	LastSeen    string `json:"last_seen"`
}

// serveStatus is the handler of GET {api_path}/status.
func (svc *Service) serveStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs := svc.registry.Snapshot()
	clients := make([]*clientStatus, 0, len(recs))
	for _, rec := range recs {
		clients = append(clients, newClientStatus(rec))
	}

	vsenthttp.WriteJSON(w, r, http.StatusOK, &statusResp{
		Server:  svc.selfView.Current(ctx),
		Clients: clients,
	})
}

// newClientStatus converts a registry record into its status entry.
func newClientStatus(rec *registry.ClientRecord) (cs *clientStatus) {
	k := &rec.Keepalive

	return &clientStatus{
		ID:          string(rec.ID),
		Version:     rec.Version,
		PublicIP:    k.PublicIP,
		State:       string(rec.State),
		Country:     string(rec.Country),
		City:        k.Location.City,
		Org:         k.Location.Org,
		DNSLocation: k.DNSTest.Location,
		DNSColo:     k.DNSTest.Colo,
		LastSeen:    rec.LastSeen.UTC().Format(time.RFC3339),
	}
}
