package outputs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

const (
	defaultEnterpriseOID = ".1.3.6.1.4.1.99999"
	snmpRecentReports    = 100
)

// Table columns under <enterprise>.2.<row>
const (
	metricColSite = iota + 1
	metricColName
	metricColCount
	metricColFinal
	metricColLast
	metricColAvg
	metricColMin
	metricColMax
	metricColLastReport
	metricColumns = metricColLastReport
)

// Table columns under <enterprise>.3.<row>
const (
	recentColSite = iota + 1
	recentColName
	recentColTimestamp
	recentColValue
	recentColFinal
	recentColumns = recentColFinal
)

// SNMPOutput is an SNMP agent answering polls about recent metric reports:
//
//	<enterprise>.1    general counters
//	<enterprise>.2    per site and metric statistics, rows sorted by site then metric
//	<enterprise>.3    the most recent reports, oldest first
type SNMPOutput struct {
	config *config.SNMPConfig
	logger *zap.Logger

	baseOID    string
	generalOID string
	metricsOID string
	recentOID  string

	mu      sync.RWMutex
	recent  []*models.MetricReport
	maxSize int
	stats   map[statsKey]*metricStats
	total   int64
	finals  int64

	// general OIDs
	oidTree map[string]oidHandler

	done       chan struct{}
	wg         sync.WaitGroup
	snmpConn   *net.UDPConn
	httpServer *http.Server
}

type statsKey struct {
	Site   string
	Metric models.MetricName
}

// metricStats aggregates the reports of one metric on one site
type metricStats struct {
	Count      int64     `json:"count"`
	FinalCount int64     `json:"final_count"`
	LastMs     float64   `json:"last_ms"`
	AvgMs      float64   `json:"avg_ms"`
	MinMs      float64   `json:"min_ms"`
	MaxMs      float64   `json:"max_ms"`
	LastReport time.Time `json:"last_report"`
}

type oidHandler func() gosnmp.SnmpPDU

// NewSNMPOutput creates the agent and starts its UDP listener and JSON
// debug API. It returns nil when SNMP is disabled.
func NewSNMPOutput(cfg *config.SNMPConfig, logger *zap.Logger) (*SNMPOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	s := newSNMPOutput(cfg, logger)

	if err := s.startSNMPServer(); err != nil {
		return nil, fmt.Errorf("failed to start SNMP server: %w", err)
	}
	s.startHTTPServer()

	s.logger.Info("SNMP agent listening",
		zap.String("address", cfg.ListenAddress),
		zap.Int("port", cfg.Port),
		zap.Int("http_port", cfg.Port+1),
		zap.String("enterprise_oid", s.baseOID),
	)

	return s, nil
}

// newSNMPOutput builds the agent state without opening any socket
func newSNMPOutput(cfg *config.SNMPConfig, logger *zap.Logger) *SNMPOutput {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.EnterpriseOID
	if base == "" {
		base = defaultEnterpriseOID
	}
	if !strings.HasPrefix(base, ".") {
		base = "." + base
	}

	s := &SNMPOutput{
		config:     cfg,
		logger:     logger,
		baseOID:    base,
		generalOID: base + ".1",
		metricsOID: base + ".2",
		recentOID:  base + ".3",
		recent:     make([]*models.MetricReport, 0, snmpRecentReports),
		maxSize:    snmpRecentReports,
		stats:      make(map[statsKey]*metricStats),
		oidTree:    make(map[string]oidHandler),
		done:       make(chan struct{}),
	}
	s.initializeOIDTree()
	return s
}

// initializeOIDTree registers the scalar OIDs. Handlers run with s.mu held
// for reading.
func (s *SNMPOutput) initializeOIDTree() {
	gauge := func(oid string, value func() int) {
		s.oidTree[oid] = func() gosnmp.SnmpPDU {
			return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Gauge32, Value: uint(value())}
		}
	}
	counter := func(oid string, value func() int64) {
		s.oidTree[oid] = func() gosnmp.SnmpPDU {
			return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(value())}
		}
	}

	gauge(s.generalOID+".1.0", func() int { return len(s.recent) })
	gauge(s.generalOID+".2.0", func() int { return s.maxSize })
	gauge(s.generalOID+".3.0", func() int { return len(s.sitesLocked()) })
	counter(s.generalOID+".4.0", func() int64 { return s.total })
	counter(s.generalOID+".5.0", func() int64 { return s.finals })
}

// Write records a report in the recent table and the site statistics
func (s *SNMPOutput) Write(report *models.MetricReport) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recent) >= s.maxSize {
		s.recent = s.recent[1:]
	}
	s.recent = append(s.recent, report)

	s.total++
	if report.Metric.IsFinal {
		s.finals++
	}

	key := statsKey{Site: report.SiteLabel(), Metric: report.Metric.Name}
	st, ok := s.stats[key]
	if !ok {
		st = &metricStats{MinMs: report.Metric.Value, MaxMs: report.Metric.Value}
		s.stats[key] = st
	}

	value := report.Metric.Value
	st.Count++
	if report.Metric.IsFinal {
		st.FinalCount++
	}
	st.LastMs = value
	st.LastReport = report.Timestamp
	st.MinMs = math.Min(st.MinMs, value)
	st.MaxMs = math.Max(st.MaxMs, value)
	st.AvgMs += (value - st.AvgMs) / float64(st.Count)

	return nil
}

// sortedKeysLocked returns the statistics keys in table row order
func (s *SNMPOutput) sortedKeysLocked() []statsKey {
	keys := make([]statsKey, 0, len(s.stats))
	for k := range s.stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Site != keys[j].Site {
			return keys[i].Site < keys[j].Site
		}
		return keys[i].Metric < keys[j].Metric
	})
	return keys
}

func (s *SNMPOutput) sitesLocked() map[string]struct{} {
	sites := make(map[string]struct{})
	for k := range s.stats {
		sites[k.Site] = struct{}{}
	}
	return sites
}

// GetMetricStats returns a copy of the statistics of one metric on a site
func (s *SNMPOutput) GetMetricStats(site string, name models.MetricName) *metricStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[statsKey{Site: site, Metric: name}]; ok {
		cp := *st
		return &cp
	}
	return nil
}

// GetRecentReports returns a copy of the recent report table
func (s *SNMPOutput) GetRecentReports() []*models.MetricReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*models.MetricReport, len(s.recent))
	copy(reports, s.recent)
	return reports
}

// GetSNMPData returns the agent state as a JSON-friendly map
func (s *SNMPOutput) GetSNMPData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := make(map[string]map[string]metricStats)
	for k, st := range s.stats {
		if sites[k.Site] == nil {
			sites[k.Site] = make(map[string]metricStats)
		}
		sites[k.Site][string(k.Metric)] = *st
	}

	return map[string]any{
		"recent_reports":  len(s.recent),
		"recent_max_size": s.maxSize,
		"monitored_sites": len(sites),
		"total_reports":   s.total,
		"final_reports":   s.finals,
		"enterprise_oid":  s.baseOID,
		"sites":           sites,
	}
}

// ExportMIBData renders the agent state as a plain-text summary
func (s *SNMPOutput) ExportMIBData() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "-- Page Performance Monitor MIB (simplified)\n")
	fmt.Fprintf(&b, "-- Enterprise OID: %s\n\n", s.baseOID)
	fmt.Fprintf(&b, "Recent Reports: %d\n", len(s.recent))
	fmt.Fprintf(&b, "Total Reports: %d\n", s.total)
	fmt.Fprintf(&b, "Final Reports: %d\n", s.finals)

	for i, k := range s.sortedKeysLocked() {
		st := s.stats[k]
		fmt.Fprintf(&b, "\n%s.%d  %s %s\n", s.metricsOID, i+1, k.Site, k.Metric)
		fmt.Fprintf(&b, "  Reports: %d (%d final)\n", st.Count, st.FinalCount)
		fmt.Fprintf(&b, "  Last: %.2f ms  Avg: %.2f ms  Min: %.2f ms  Max: %.2f ms\n", st.LastMs, st.AvgMs, st.MinMs, st.MaxMs)
	}

	return b.String()
}

// getOIDValue answers a GET for one OID
func (s *SNMPOutput) getOIDValue(oid string) gosnmp.SnmpPDU {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOIDValueLocked(oid)
}

func (s *SNMPOutput) getOIDValueLocked(oid string) gosnmp.SnmpPDU {
	if handler, ok := s.oidTree[oid]; ok {
		return handler()
	}

	if row, col, ok := parseTableOID(oid, s.metricsOID); ok {
		return s.metricCell(oid, row, col)
	}
	if row, col, ok := parseTableOID(oid, s.recentOID); ok {
		return s.recentCell(oid, row, col)
	}

	return noSuchInstance(oid)
}

func (s *SNMPOutput) metricCell(oid string, row, col int) gosnmp.SnmpPDU {
	keys := s.sortedKeysLocked()
	if row < 1 || row > len(keys) {
		return noSuchInstance(oid)
	}
	k := keys[row-1]
	st := s.stats[k]

	switch col {
	case metricColSite:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: k.Site}
	case metricColName:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: string(k.Metric)}
	case metricColCount:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(st.Count)}
	case metricColFinal:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(st.FinalCount)}
	case metricColLast:
		return msGauge(oid, st.LastMs)
	case metricColAvg:
		return msGauge(oid, st.AvgMs)
	case metricColMin:
		return msGauge(oid, st.MinMs)
	case metricColMax:
		return msGauge(oid, st.MaxMs)
	case metricColLastReport:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(st.LastReport.Unix())}
	}
	return noSuchInstance(oid)
}

func (s *SNMPOutput) recentCell(oid string, row, col int) gosnmp.SnmpPDU {
	if row < 1 || row > len(s.recent) {
		return noSuchInstance(oid)
	}
	r := s.recent[row-1]

	switch col {
	case recentColSite:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: r.SiteLabel()}
	case recentColName:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: string(r.Metric.Name)}
	case recentColTimestamp:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: uint64(r.Timestamp.Unix())}
	case recentColValue:
		return msGauge(oid, r.Metric.Value)
	case recentColFinal:
		final := 0
		if r.Metric.IsFinal {
			final = 1
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Integer, Value: final}
	}
	return noSuchInstance(oid)
}

// msGauge rounds a millisecond value into a Gauge32
func msGauge(oid string, ms float64) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Gauge32, Value: uint(math.Round(math.Max(ms, 0)))}
}

func noSuchInstance(oid string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchInstance, Value: nil}
}

// parseTableOID splits <prefix>.<row>.<col>
func parseTableOID(oid, prefix string) (row, col int, ok bool) {
	rest, found := strings.CutPrefix(oid, prefix+".")
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 2 {
		return 0, 0, false
	}
	row, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	col, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return row, col, true
}

// getNextOID answers a GETNEXT: the first OID after oid in the tree
func (s *SNMPOutput) getNextOID(oid string) gosnmp.SnmpPDU {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, next := range s.getAllOIDsLocked() {
		if oidCompare(oid, next) < 0 {
			return s.getOIDValueLocked(next)
		}
	}

	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.EndOfMibView, Value: nil}
}

// getAllOIDsLocked lists every OID the agent answers, in walk order
func (s *SNMPOutput) getAllOIDsLocked() []string {
	oids := make([]string, 0, len(s.oidTree)+len(s.stats)*metricColumns+len(s.recent)*recentColumns)

	for oid := range s.oidTree {
		oids = append(oids, oid)
	}
	for row := 1; row <= len(s.stats); row++ {
		for col := 1; col <= metricColumns; col++ {
			oids = append(oids, fmt.Sprintf("%s.%d.%d", s.metricsOID, row, col))
		}
	}
	for row := 1; row <= len(s.recent); row++ {
		for col := 1; col <= recentColumns; col++ {
			oids = append(oids, fmt.Sprintf("%s.%d.%d", s.recentOID, row, col))
		}
	}

	sortOIDs(oids)
	return oids
}

// oidCompare compares two OIDs numerically, arc by arc
func oidCompare(oid1, oid2 string) int {
	parts1 := strings.Split(strings.TrimPrefix(oid1, "."), ".")
	parts2 := strings.Split(strings.TrimPrefix(oid2, "."), ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		n1, _ := strconv.Atoi(parts1[i])
		n2, _ := strconv.Atoi(parts2[i])

		if n1 < n2 {
			return -1
		} else if n1 > n2 {
			return 1
		}
	}

	switch {
	case len(parts1) < len(parts2):
		return -1
	case len(parts1) > len(parts2):
		return 1
	}
	return 0
}

func sortOIDs(oids []string) {
	sort.Slice(oids, func(i, j int) bool {
		return oidCompare(oids[i], oids[j]) < 0
	})
}

// handlePacket answers one SNMP request. It returns nil when the request
// gets no response.
func (s *SNMPOutput) handlePacket(packet *gosnmp.SnmpPacket) *gosnmp.SnmpPacket {
	if packet.Community != s.config.Community {
		return nil
	}

	response := &gosnmp.SnmpPacket{
		Version:   packet.Version,
		Community: packet.Community,
		PDUType:   gosnmp.GetResponse,
		RequestID: packet.RequestID,
		Variables: make([]gosnmp.SnmpPDU, 0, len(packet.Variables)),
	}

	switch packet.PDUType {
	case gosnmp.GetRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, s.getOIDValue(v.Name))
		}
	case gosnmp.GetNextRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, s.getNextOID(v.Name))
		}
	case gosnmp.GetBulkRequest:
		maxReps := packet.MaxRepetitions
		if maxReps == 0 {
			maxReps = 10
		}
		for _, v := range packet.Variables {
			current := v.Name
			for i := uint32(0); i < maxReps; i++ {
				pdu := s.getNextOID(current)
				if pdu.Type == gosnmp.EndOfMibView {
					break
				}
				response.Variables = append(response.Variables, pdu)
				current = pdu.Name
			}
		}
	default:
		s.logger.Debug("unsupported SNMP PDU type", zap.String("type", packet.PDUType.String()))
		return nil
	}

	return response
}

func (s *SNMPOutput) startSNMPServer() error {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddress, s.config.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.snmpConn = conn

	s.wg.Add(1)
	go s.servePackets()

	return nil
}

func (s *SNMPOutput) servePackets() {
	defer s.wg.Done()
	defer s.snmpConn.Close()

	buffer := make([]byte, 65535)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		// The deadline lets the loop notice shutdown
		s.snmpConn.SetReadDeadline(time.Now().Add(1 * time.Second))

		n, remote, err := s.snmpConn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Warn("SNMP read error", zap.Error(err))
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		go s.respond(data, remote)
	}
}

func (s *SNMPOutput) respond(data []byte, remote *net.UDPAddr) {
	packet, err := gosnmp.Default.SnmpDecodePacket(data)
	if err != nil {
		s.logger.Debug("failed to decode SNMP packet", zap.Stringer("remote", remote), zap.Error(err))
		return
	}

	response := s.handlePacket(packet)
	if response == nil {
		return
	}

	out, err := response.MarshalMsg()
	if err != nil {
		s.logger.Warn("failed to marshal SNMP response", zap.Error(err))
		return
	}
	if _, err := s.snmpConn.WriteToUDP(out, remote); err != nil {
		s.logger.Warn("failed to send SNMP response", zap.Stringer("remote", remote), zap.Error(err))
	}
}

// startHTTPServer serves the agent state as JSON next to the SNMP port
func (s *SNMPOutput) startHTTPServer() {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddress, s.config.Port+1)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("SNMP HTTP server error", zap.Error(err))
		}
	}()
}

func (s *SNMPOutput) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snmp/data", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.GetSNMPData())
	})
	mux.HandleFunc("/snmp/oids", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		oids := s.getAllOIDsLocked()
		s.mu.RUnlock()
		s.writeJSON(w, oids)
	})
	mux.HandleFunc("/snmp/mib", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, s.ExportMIBData())
	})
	return mux
}

func (s *SNMPOutput) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("error encoding SNMP data", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Name returns the output module name
func (s *SNMPOutput) Name() string {
	return "snmp"
}

// Close shuts down the agent
func (s *SNMPOutput) Close() error {
	if s == nil {
		return nil
	}

	s.logger.Info("shutting down SNMP agent")
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("error shutting down SNMP HTTP server", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	s.logger.Info("SNMP agent stopped",
		zap.Int64("total_reports", s.total),
		zap.Int64("final_reports", s.finals),
	)

	return nil
}
