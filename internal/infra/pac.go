package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PACPayload is sent by the worker pool to the PAC bridge. The bridge holds
// the CSD and talks the PAC's SOAP dialect; this service only ships the CFDI
// nómina data and gets back the timbre.
type PACPayload struct {
	ReciboID      string `json:"recibo_id"`
	EmpresaRFC    string `json:"empresa_rfc"`
	EmpleadoRFC   string `json:"empleado_rfc"`
	EmpleadoCURP  string `json:"empleado_curp,omitempty"`
	XMLOriginal   []byte `json:"xml_original"`
	TotalNeto     string `json:"total_neto"`
	FechaPago     string `json:"fecha_pago"`
}

// PACResponse is returned by the bridge after the PAC stamps (or rejects)
// the CFDI.
type PACResponse struct {
	TimbreUUID   string `json:"timbre_uuid"`
	FechaTimbre  string `json:"fecha_timbre"`
	XMLTimbrado  []byte `json:"xml_timbrado"`
	Resultado    string `json:"resultado"` // "A" (aceptado) | "R" (rechazado)
	Observaciones []struct {
		Codigo  string `json:"codigo"`
		Mensaje string `json:"mensaje"`
	} `json:"observaciones"`
}

// PACClient is an HTTP client that delegates all PAC communication to the
// bridge. The decoupling isolates PAC outages from the core backend.
type PACClient struct {
	bridgeURL  string
	usuario    string
	password   string
	httpClient *http.Client
}

func NewPACClient(bridgeURL, usuario, password string) *PACClient {
	return &PACClient{
		bridgeURL:  bridgeURL,
		usuario:    usuario,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Timbrar sends a POST to the bridge and returns the stamped response.
func (c *PACClient) Timbrar(ctx context.Context, payload PACPayload) (*PACResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pac: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL+"/timbrar", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pac: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.usuario, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pac: bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pac: bridge returned %d", resp.StatusCode)
	}

	var result PACResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pac: decode response: %w", err)
	}
	return &result, nil
}
