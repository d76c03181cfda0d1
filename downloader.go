package eigenface

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/net/proxy"
)

// Resource describes a downloadable detector cascade
type Resource struct {
	Name        string
	URL         string
	Filename    string
	MD5         string // Optional checksum
	Size        int64  // Expected size in bytes
	Description string
	Detector    DetectorKind
}

// AvailableResources lists the detector cascades that can be downloaded
var AvailableResources = map[string]Resource{
	"haarcascade-frontalface": {
		Name:        "OpenCV Haar Frontal Face",
		URL:         "https://raw.githubusercontent.com/opencv/opencv/4.x/data/haarcascades/haarcascade_frontalface_default.xml",
		Filename:    "haarcascade_frontalface_default.xml",
		Size:        930127, // ~908KB
		Description: "Haar cascade used by the haar detector",
		Detector:    DetectorHaar,
	},
	"pigo-facefinder": {
		Name:        "Pigo Face Detector",
		URL:         "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder",
		Filename:    "facefinder",
		Size:        51764, // ~50KB
		Description: "Pigo cascade used by the pigo detector",
		Detector:    DetectorPigo,
	},
}

// ResourceFor returns the key of the cascade used by a detector
func ResourceFor(kind DetectorKind) (string, bool) {
	for key, res := range AvailableResources {
		if res.Detector == kind {
			return key, true
		}
	}
	return "", false
}

// DownloadProgress represents download progress
type DownloadProgress struct {
	Total      int64
	Downloaded int64
	Percentage float64
	Speed      float64 // bytes per second
	Elapsed    time.Duration
}

// ProgressCallback is called during download to report progress
type ProgressCallback func(progress DownloadProgress)

// ResourceDownloader fetches detector cascades
type ResourceDownloader struct {
	OutputDir        string
	OnProgress       ProgressCallback
	Timeout          time.Duration
	SkipVerification bool
	ProxyURL         string    // SOCKS5 or HTTP proxy URL (e.g., "socks5://127.0.0.1:10808")
	Out              io.Writer // status messages, os.Stdout by default
}

// NewResourceDownloader creates a new downloader writing into outputDir
func NewResourceDownloader(outputDir string) *ResourceDownloader {
	return &ResourceDownloader{
		OutputDir: outputDir,
		Timeout:   5 * time.Minute,
		Out:       os.Stdout,
	}
}

func (d *ResourceDownloader) printf(format string, args ...any) {
	if d.Out != nil {
		fmt.Fprintf(d.Out, format, args...)
	}
}

// Download downloads a resource by its key and returns the local path
func (d *ResourceDownloader) Download(key string) (string, error) {
	res, exists := AvailableResources[key]
	if !exists {
		return "", fmt.Errorf("resource '%s' not found in available resources", key)
	}

	return d.DownloadResource(res)
}

// DownloadResource downloads res unless a verified copy already exists
func (d *ResourceDownloader) DownloadResource(res Resource) (string, error) {
	if err := os.MkdirAll(d.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(d.OutputDir, res.Filename)

	if fileExists(outputPath) {
		if d.SkipVerification || res.MD5 == "" {
			d.printf("File already exists: %s\n", outputPath)
			return outputPath, nil
		}
		if verifyMD5(outputPath, res.MD5) {
			d.printf("File already exists and is verified: %s\n", outputPath)
			return outputPath, nil
		}
		d.printf("Checksum mismatch, re-downloading %s\n", outputPath)
		os.Remove(outputPath)
	}

	d.printf("Downloading %s from %s\n", res.Name, res.URL)

	client, err := d.createHTTPClient()
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP client: %w", err)
	}

	resp, err := client.Get(res.URL)
	if err != nil {
		return "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status: %s", resp.Status)
	}

	// write next to the target and rename, a partial file never looks complete
	tmp, err := os.CreateTemp(d.OutputDir, res.Filename+".part-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.downloadWithProgress(tmp, resp.Body, resp.ContentLength); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	if !d.SkipVerification && res.MD5 != "" && !verifyMD5(tmp.Name(), res.MD5) {
		return "", fmt.Errorf("checksum verification failed for %s", res.Filename)
	}

	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return "", fmt.Errorf("failed to move downloaded file: %w", err)
	}

	d.printf("\nSaved %s\n", outputPath)
	return outputPath, nil
}

// downloadWithProgress copies src to dst, reporting progress every 100ms
func (d *ResourceDownloader) downloadWithProgress(dst io.Writer, src io.Reader, totalSize int64) error {
	startTime := time.Now()
	var downloaded int64

	buffer := make([]byte, 32*1024)
	lastUpdate := time.Time{}

	report := func() {
		elapsed := time.Since(startTime)
		percentage := 0.0
		if totalSize > 0 {
			percentage = float64(downloaded) / float64(totalSize) * 100
		}
		progress := DownloadProgress{
			Total:      totalSize,
			Downloaded: downloaded,
			Percentage: percentage,
			Speed:      float64(downloaded) / elapsed.Seconds(),
			Elapsed:    elapsed,
		}
		if d.OnProgress != nil {
			d.OnProgress(progress)
			return
		}
		d.printProgress(progress)
	}

	for {
		n, err := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return writeErr
			}
			downloaded += int64(n)

			if time.Since(lastUpdate) > 100*time.Millisecond {
				report()
				lastUpdate = time.Now()
			}
		}

		if err == io.EOF {
			report()
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *ResourceDownloader) printProgress(p DownloadProgress) {
	if p.Total > 0 {
		d.printf("\rProgress: %.1f%% (%s / %s) %s, %s", p.Percentage,
			formatBytes(p.Downloaded), formatBytes(p.Total), formatSpeed(p.Speed), formatDuration(p.Elapsed))
	} else {
		d.printf("\rDownloaded: %s", formatBytes(p.Downloaded))
	}
}

// DownloadAll downloads every available resource
func (d *ResourceDownloader) DownloadAll() error {
	keys := make([]string, 0, len(AvailableResources))
	for key := range AvailableResources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	failed := make([]string, 0)
	for _, key := range keys {
		if _, err := d.Download(key); err != nil {
			d.printf("Failed %s: %v\n", key, err)
			failed = append(failed, key)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to download %d resource(s): %v", len(failed), failed)
	}
	return nil
}

// DownloadRequired downloads the cascade of every detector
func (d *ResourceDownloader) DownloadRequired() error {
	for _, kind := range []DetectorKind{DetectorHaar, DetectorPigo} {
		key, ok := ResourceFor(kind)
		if !ok {
			return fmt.Errorf("no resource for detector %s", kind)
		}
		if _, err := d.Download(key); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}
	}
	return nil
}

// ListAvailableResources writes a description of every resource to w
func ListAvailableResources(w io.Writer) {
	keys := make([]string, 0, len(AvailableResources))
	for key := range AvailableResources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		res := AvailableResources[key]
		fmt.Fprintf(w, "%s\n", key)
		fmt.Fprintf(w, "  Name: %s\n", res.Name)
		fmt.Fprintf(w, "  Detector: %s\n", res.Detector)
		fmt.Fprintf(w, "  Description: %s\n", res.Description)
		fmt.Fprintf(w, "  Size: %s\n", formatBytes(res.Size))
		fmt.Fprintf(w, "  URL: %s\n", res.URL)
	}
}

// GetResourcePath returns the expected path for a downloaded resource
func GetResourcePath(outputDir, key string) (string, error) {
	res, exists := AvailableResources[key]
	if !exists {
		return "", fmt.Errorf("resource '%s' not found", key)
	}

	return filepath.Join(outputDir, res.Filename), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func verifyMD5(path, expectedMD5 string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return false
	}

	return hex.EncodeToString(hash.Sum(nil)) == expectedMD5
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", formatBytes(int64(bytesPerSecond)))
}

// formatDuration formats duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// createHTTPClient creates an HTTP client with proxy support
func (d *ResourceDownloader) createHTTPClient() (*http.Client, error) {
	client := &http.Client{
		Timeout: d.Timeout,
	}

	if d.ProxyURL == "" {
		return client, nil
	}

	proxyURL, err := url.Parse(d.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch proxyURL.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		client.Transport = &http.Transport{
			Dial: dialer.Dial,
		}

	case "http", "https":
		client.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}

	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s (supported: socks5, http, https)", proxyURL.Scheme)
	}

	return client, nil
}
