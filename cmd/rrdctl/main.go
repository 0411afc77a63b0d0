package main

import (
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"example.com/rrdgate/internal/check"
	"example.com/rrdgate/internal/common"
	"example.com/rrdgate/internal/crypto"
	"example.com/rrdgate/internal/export"
	"example.com/rrdgate/internal/manifest"
	"example.com/rrdgate/internal/region"
	"example.com/rrdgate/internal/report"
	"example.com/rrdgate/internal/rrd"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "read":
		readCmd(os.Args[2:])
	case "watch":
		watchCmd(os.Args[2:])
	case "check":
		checkCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "verify-signature":
		verifySignatureCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`rrdctl %s (built %s) <command> [options]

Commands:
  read      --in <region file> [--mmap] [--out <snapshot.json>]
  watch     --in <region file> [--mmap] [--interval <dur>] [--count <n>] [--out <snapshots.ndjson>] [--metrics]
  check     --in <region file> [--mmap] [--max-age <dur>] [--acceptance <acceptance.json>]
  report    --in <region file> [--mmap] [--max-age <dur>] --pdf <report.pdf> [--json <snapshot.json>] [--acceptance <acceptance.json>]
  inspect   --in <region file>
  manifest  --inputs <comma-separated> --out <manifest.json> [--sign --key <key.pem> --cert <cert.pem> --jws-out <file>]
  verify-signature --manifest <manifest.json> --jws <signature.jws> --cert <cert.pem>
`, version, buildDate)
}

func openProvider(path string, mapped bool) (region.Provider, error) {
	if mapped {
		return region.OpenMapped(path)
	}
	return region.OpenFile(path)
}

func decodeOnce(path string, mapped bool) (rrd.Snapshot, error) {
	provider, err := openProvider(path, mapped)
	if err != nil {
		return rrd.Snapshot{}, err
	}
	defer provider.Close()

	buf, err := provider.Bytes()
	if err != nil {
		return rrd.Snapshot{}, err
	}
	snap, ok, err := rrd.NewReader().Read(buf)
	if err != nil {
		return rrd.Snapshot{}, err
	}
	if !ok {
		return rrd.Snapshot{}, fmt.Errorf("region %s reported no update on first read", path)
	}
	return snap, nil
}

func readCmd(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	in := fs.String("in", "", "region file")
	mapped := fs.Bool("mmap", false, "map the region instead of reading it")
	out := fs.String("out", "", "snapshot JSON output (default stdout)")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	snap, err := decodeOnce(*in, *mapped)
	if err != nil {
		fmt.Println("read region:", err)
		os.Exit(1)
	}
	doc := export.NewSnapshotDoc(snap)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Println("marshal snapshot:", err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(*out, append(b, '\n'), 0o644); err != nil {
		fmt.Println("write snapshot:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
}

func watchCmd(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	in := fs.String("in", "", "region file")
	mapped := fs.Bool("mmap", false, "map the region instead of reading it")
	interval := fs.Duration("interval", 5*time.Second, "poll interval")
	count := fs.Int("count", 0, "stop after this many updates (0 = run until interrupted)")
	out := fs.String("out", "", "NDJSON output (default stdout)")
	metricsFlag := fs.Bool("metrics", false, "print decode metrics on exit")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	provider, err := openProvider(*in, *mapped)
	if err != nil {
		fmt.Println("open region:", err)
		os.Exit(1)
	}
	defer provider.Close()

	sink := os.Stdout
	if *out != "" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Println("open output:", err)
			os.Exit(1)
		}
		defer f.Close()
		sink = f
	}
	writer := export.NewNDJSONWriter(sink)

	metrics := common.NewMetrics()
	metrics.Start()
	reader := rrd.NewReader()
	reader.SetMetrics(metrics)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	updates := 0
loop:
	for {
		buf, err := provider.Bytes()
		if err != nil {
			common.Logf("read region: %v", err)
		} else if snap, ok, err := reader.Read(buf); err != nil {
			common.Logf("decode region: %v", err)
		} else if ok {
			if err := writer.WriteSnapshot(export.NewSnapshotDoc(snap)); err != nil {
				fmt.Println("write snapshot:", err)
				os.Exit(1)
			}
			updates++
			if *count > 0 && updates >= *count {
				break loop
			}
		}
		select {
		case <-stop:
			break loop
		case <-ticker.C:
		}
	}
	metrics.Stop()
	if *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Fprintf(os.Stderr, "Metrics: duration=%s updates=%d no-updates=%d checksum-failures=%d decoded=%s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Updates,
			snap.NoUpdates,
			snap.ChecksumFailures,
			common.FormatBytes(snap.BytesDecoded),
		)
	}
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	in := fs.String("in", "", "region file")
	mapped := fs.Bool("mmap", false, "map the region instead of reading it")
	maxAge := fs.Duration("max-age", 0, "flag snapshots older than this (0 disables)")
	outAcc := fs.String("acceptance", "", "acceptance report output")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	snap, err := decodeOnce(*in, *mapped)
	if err != nil {
		fmt.Println("read region:", err)
		os.Exit(1)
	}
	findings := check.Evaluate(filepath.Base(*in), snap, check.Config{MaxAge: *maxAge})
	rep := check.MakeAcceptance(findings)
	if *outAcc != "" {
		if err := report.SaveAcceptanceJSON(rep, *outAcc); err != nil {
			fmt.Println("write report:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("PASS=%v, errors=%d, warnings=%d, findings=%d\n", rep.Summary.Pass, rep.Summary.Errors, rep.Summary.Warnings, len(findings))
	if !rep.Summary.Pass {
		os.Exit(1)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "region file")
	mapped := fs.Bool("mmap", false, "map the region instead of reading it")
	maxAge := fs.Duration("max-age", 0, "flag snapshots older than this (0 disables)")
	pdfPath := fs.String("pdf", "", "output report PDF")
	jsonPath := fs.String("json", "", "output snapshot JSON")
	accPath := fs.String("acceptance", "", "output acceptance JSON")
	fs.Parse(args)

	if *in == "" || *pdfPath == "" {
		fmt.Println("required: --in, --pdf")
		os.Exit(1)
	}
	snap, err := decodeOnce(*in, *mapped)
	if err != nil {
		fmt.Println("read region:", err)
		os.Exit(1)
	}
	regionName := filepath.Base(*in)
	doc := export.NewSnapshotDoc(snap)
	rep := check.MakeAcceptance(check.Evaluate(regionName, snap, check.Config{MaxAge: *maxAge}))

	var manifestHash string
	if *jsonPath != "" {
		if err := report.SaveSnapshotJSON(doc, *jsonPath); err != nil {
			fmt.Println("write snapshot:", err)
			os.Exit(1)
		}
		hash, _, err := common.Sha256OfFile(*jsonPath)
		if err != nil {
			fmt.Println("hash snapshot:", err)
			os.Exit(1)
		}
		manifestHash = hash
		fmt.Println("Wrote", *jsonPath)
	}
	if *accPath != "" {
		if err := report.SaveAcceptanceJSON(rep, *accPath); err != nil {
			fmt.Println("write acceptance:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *accPath)
	}

	input := report.PDFInput{
		Region:       regionName,
		GeneratedAt:  time.Now(),
		Snapshot:     doc,
		Acceptance:   rep,
		ManifestHash: manifestHash,
	}
	if err := report.SaveRegionPDF(input, *pdfPath); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote PDF:", *pdfPath)
}

// inspectCmd dumps the raw region fields and layout offsets without
// committing anything to a reader cache.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "region file")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	buf, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read region:", err)
		os.Exit(1)
	}
	probe := rrd.NewLayout(0, 0)
	if len(buf) < probe.MetaStart {
		fmt.Printf("region too short: %d bytes, need at least %d\n", len(buf), probe.MetaStart)
		os.Exit(1)
	}
	header := string(buf[probe.HeaderStart : probe.HeaderStart+len(rrd.Header)])
	dataCRC := binary.BigEndian.Uint32(buf[probe.DataCRCStart:])
	metaCRC := binary.BigEndian.Uint32(buf[probe.MetaCRCStart:])
	count := int(binary.BigEndian.Uint32(buf[probe.CountStart:]))
	timestamp := binary.BigEndian.Uint64(buf[probe.TimestampStart:])

	l := rrd.NewLayout(count, 0)
	metaLen := -1
	if len(buf) >= l.MetaStart {
		metaLen = int(binary.BigEndian.Uint32(buf[l.MetaLenStart:]))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FIELD\tOFFSET\tVALUE\n")
	fmt.Fprintf(w, "header\t%d\t%q\n", l.HeaderStart, header)
	fmt.Fprintf(w, "data crc\t%d\t%08x\n", l.DataCRCStart, dataCRC)
	fmt.Fprintf(w, "metadata crc\t%d\t%08x\n", l.MetaCRCStart, metaCRC)
	fmt.Fprintf(w, "count\t%d\t%d\n", l.CountStart, count)
	fmt.Fprintf(w, "timestamp\t%d\t%d\n", l.TimestampStart, timestamp)
	fmt.Fprintf(w, "values\t%d\t%d x 8 bytes\n", l.ValuesStart, count)
	if metaLen >= 0 {
		fmt.Fprintf(w, "metadata length\t%d\t%d\n", l.MetaLenStart, metaLen)
		fmt.Fprintf(w, "metadata\t%d\t%d bytes\n", l.MetaStart, metaLen)
		total := rrd.NewLayout(count, metaLen).TotalSize
		fmt.Fprintf(w, "total size\t\t%d (file %d)\n", total, len(buf))
	} else {
		fmt.Fprintf(w, "metadata length\t%d\t(beyond end of file)\n", l.MetaLenStart)
	}
	w.Flush()

	if header != rrd.Header {
		fmt.Println("header literal does not match")
	}
	start, end := l.DataRange()
	if end <= len(buf) {
		if got := rrd.Checksum(buf[start:end]); got == dataCRC {
			fmt.Println("data crc: OK")
		} else {
			fmt.Printf("data crc: MISMATCH (computed %08x)\n", got)
		}
	}
	if metaLen >= 0 && l.MetaStart+metaLen <= len(buf) {
		if got := rrd.Checksum(buf[l.MetaStart : l.MetaStart+metaLen]); got == metaCRC {
			fmt.Println("metadata crc: OK")
		} else {
			fmt.Printf("metadata crc: MISMATCH (computed %08x)\n", got)
		}
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	sign := fs.Bool("sign", false, "sign manifest (detached JWS over JSON)")
	keyPath := fs.String("key", "", "PEM private key for signing (requires --sign)")
	certPath := fs.String("cert", "", "PEM certificate describing signer (requires --sign)")
	jwsOut := fs.String("jws-out", "", "output JWS file (defaults to manifest path with .jws)")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}

	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		fmt.Println("no input paths specified")
		os.Exit(1)
	}

	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("manifest build:", err)
		os.Exit(1)
	}

	if !*sign {
		if err := manifest.Save(m, *out); err != nil {
			fmt.Println("manifest save:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
		return
	}

	if *keyPath == "" || *certPath == "" {
		fmt.Println("--sign requires --key and --cert")
		os.Exit(1)
	}

	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Println("read key:", err)
		os.Exit(1)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		fmt.Println("read cert:", err)
		os.Exit(1)
	}

	sigPath := *jwsOut
	if sigPath == "" {
		base := *out
		ext := filepath.Ext(base)
		if ext != "" {
			sigPath = base[:len(base)-len(ext)] + ".jws"
		} else {
			sigPath = base + ".jws"
		}
	}

	block, _ := pem.Decode(certBytes)
	if block == nil {
		fmt.Println("parse cert: no PEM block found")
		os.Exit(1)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		fmt.Println("parse cert:", err)
		os.Exit(1)
	}

	m.Signature = &manifest.Signature{
		Type:          "jws-detached",
		CertSubject:   cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		SignatureFile: sigPath,
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		fmt.Println("manifest marshal:", err)
		os.Exit(1)
	}

	jws, err := crypto.SignDetachedJWS(payload, keyBytes)
	if err != nil {
		fmt.Println("manifest sign:", err)
		os.Exit(1)
	}
	jwsBytes, err := json.MarshalIndent(jws, "", "  ")
	if err != nil {
		fmt.Println("jws marshal:", err)
		os.Exit(1)
	}

	if err := os.WriteFile(sigPath, jwsBytes, 0644); err != nil {
		fmt.Println("write jws:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, payload, 0644); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(1)
	}

	fmt.Println("Wrote", *out)
	fmt.Println("Wrote signature", sigPath)
}

func verifySignatureCmd(args []string) {
	fs := flag.NewFlagSet("verify-signature", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	jwsPath := fs.String("jws", "", "manifest JWS signature file")
	certPath := fs.String("cert", "", "signer certificate (PEM)")
	fs.Parse(args)

	if *manifestPath == "" || *jwsPath == "" || *certPath == "" {
		fmt.Println("required: --manifest, --jws, --cert")
		os.Exit(1)
	}

	manifestBytes, err := os.ReadFile(*manifestPath)
	if err != nil {
		fmt.Println("read manifest:", err)
		os.Exit(1)
	}
	jwsBytes, err := os.ReadFile(*jwsPath)
	if err != nil {
		fmt.Println("read jws:", err)
		os.Exit(1)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		fmt.Println("read cert:", err)
		os.Exit(1)
	}

	var jwsObj crypto.JWS
	if err := json.Unmarshal(jwsBytes, &jwsObj); err != nil {
		fmt.Println("parse jws:", err)
		os.Exit(1)
	}

	if err := crypto.VerifyDetachedJWS(manifestBytes, jwsObj, certBytes); err != nil {
		fmt.Println("verify signature:", err)
		os.Exit(1)
	}
	fmt.Println("Signature OK")
}
