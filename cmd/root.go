package cmd

import (
	"bufio"
	"context"
	"fmt"
	u "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hsget/hsget/internal/curlparse"
	"github.com/hsget/hsget/internal/download"
	"github.com/hsget/hsget/internal/output"
	"github.com/hsget/hsget/internal/utils"
)

var (
	outputName    string
	outputDir     string
	connections   int
	blockCount    int
	blockSizeMB   int
	method        string
	body          string
	headers       []string
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	retries       int
	retryDelay    time.Duration
	retryJitter   time.Duration
	profilePath   string
	debug         bool
	noProgress    bool
	noLogFile     bool
)

var HSGetVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "hsget [URL|curl]",
	Short:   "hsget is a segmented, concurrent HTTP downloader",
	Long:    "hsget probes a URL for range support, fetches it as concurrent byte-range segments and reassembles them into a single file.\nPass a URL, a full curl command string, or the literal word 'curl' to paste a curl command on stdin (finish with :wq).",
	Version: HSGetVersion,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		logPath := setupLogFile()

		req, err := resolveRequest(args[0])
		if err != nil {
			output.PrintError(fmt.Sprintf("Error: %v", err))
			os.Exit(1)
		}
		if err := applyProfile(cmd, req); err != nil {
			output.PrintError(fmt.Sprintf("Error: %v", err))
			os.Exit(1)
		}
		if _, err := u.Parse(req.URL); err != nil {
			output.PrintError("Invalid URL format")
			os.Exit(1)
		}

		jobID := uuid.New().String()
		log := utils.GetLogger("hsget").With().Str("jobId", jobID).Logger()
		log.Info().Str("url", req.URL).Str("method", req.Method).Msg("Starting download job")

		if userAgent == "randomize" {
			userAgent = utils.GetRandomUserAgent()
		}
		// Proxy URL may carry credentials
		parsedProxy, err := u.Parse(proxyURL)
		if err == nil && parsedProxy.User != nil && proxyUsername == "" {
			proxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				proxyPassword = password
			}
			parsedProxy.User = nil
			proxyURL = parsedProxy.String()
		}
		clientConfig := utils.HTTPClientConfig{
			Timeout:        timeout,
			KATimeout:      kaTimeout,
			ProxyURL:       proxyURL,
			ProxyUsername:  proxyUsername,
			ProxyPassword:  proxyPassword,
			UserAgent:      userAgent,
			HighThreadMode: connections > 5,
		}
		client := utils.NewHSGetHTTPClient(clientConfig)

		var sink download.ProgressSink
		var manager *output.Manager
		if noProgress {
			sink = download.NopSink{}
		} else {
			manager = output.NewManager()
			sink = manager
		}

		engine := download.New(download.Config{
			Method:         req.Method,
			URL:            req.URL,
			Headers:        req.Headers,
			Body:           []byte(req.Body),
			AdmissionLimit: connections,
			BlockCount:     blockCount,
			BlockSize:      int64(blockSizeMB) * 1024 * 1024,
			Retry: download.RetryPolicy{
				MaxAttempts: retries,
				Delay:       retryDelay,
				JitterMax:   retryJitter,
			},
		}, client, sink)

		ctx := context.Background()
		info, err := engine.Probe(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Probe failed")
			output.PrintError(fmt.Sprintf("Error: %v", err))
			os.Exit(1)
		}
		outputPath := resolveOutputPath(req.URL, info)
		engine.SetOutputPath(outputPath)
		printBanner(outputPath, logPath, info)

		startTime := time.Now()
		if manager != nil {
			manager.StartDisplay()
		}
		err = engine.Download(ctx)
		if manager != nil {
			manager.StopDisplay()
		}
		if err != nil {
			log.Error().Err(err).Msg("Download failed")
			output.PrintError(fmt.Sprintf("Download failed: %v", err))
			os.Exit(1)
		}

		elapsed := time.Since(startTime)
		speed := "-"
		if elapsed.Seconds() > 0 {
			speed = humanize.IBytes(uint64(float64(info.Size)/elapsed.Seconds())) + "/s"
		}
		log.Info().Str("path", outputPath).Dur("elapsed", elapsed).Msg("Download succeeded")
		output.PrintSuccess(fmt.Sprintf("%s Downloaded %s in %s (%s average)",
			output.StyleSymbols["pass"], outputPath, elapsed.Round(time.Millisecond), speed))
	},
}

// resolveRequest turns the positional argument into a request description.
// The literal word "curl" switches to interactive paste mode, mirroring
// copying a curl command out of browser dev tools.
func resolveRequest(arg string) (*curlparse.Request, error) {
	var req *curlparse.Request
	var err error
	switch {
	case arg == "curl":
		fmt.Println("Paste the curl command, then a line with :wq to finish:")
		var lines []string
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == ":wq" {
				break
			}
			lines = append(lines, line)
		}
		req, err = curlparse.Parse(strings.ReplaceAll(strings.Join(lines, " "), "\\", " "))
	default:
		req, err = curlparse.Parse(arg)
	}
	if err != nil {
		return nil, err
	}
	// CLI flags override anything parsed out of the curl string
	for k, v := range utils.ParseHeaderArgs(headers) {
		req.Headers[k] = v
	}
	if method != "" {
		req.Method = strings.ToUpper(method)
	}
	if body != "" {
		req.Body = body
	}
	return req, nil
}

type profile struct {
	Method      string            `yaml:"method,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	UserAgent   string            `yaml:"userAgent,omitempty"`
	Connections int               `yaml:"connections,omitempty"`
	Retries     int               `yaml:"retries,omitempty"`
	RetryDelay  string            `yaml:"retryDelay,omitempty"`
}

// applyProfile layers a saved YAML request profile under the CLI values.
// Flags the user set explicitly always win over the profile.
func applyProfile(cmd *cobra.Command, req *curlparse.Request) error {
	if profilePath == "" {
		return nil
	}
	data, err := os.ReadFile(profilePath)
	if err != nil {
		return fmt.Errorf("reading profile: %w", err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing profile: %w", err)
	}
	for k, v := range p.Headers {
		if _, exists := req.Headers[k]; !exists {
			req.Headers[k] = v
		}
	}
	if p.Method != "" && req.Method == "GET" {
		req.Method = strings.ToUpper(p.Method)
	}
	if p.Body != "" && req.Body == "" {
		req.Body = p.Body
	}
	if p.UserAgent != "" && userAgent == "" {
		userAgent = p.UserAgent
	}
	if p.Connections > 0 && !cmd.Flags().Changed("connections") {
		connections = p.Connections
	}
	if p.Retries > 0 && !cmd.Flags().Changed("retries") {
		retries = p.Retries
	}
	if p.RetryDelay != "" && !cmd.Flags().Changed("retry-delay") {
		d, err := time.ParseDuration(p.RetryDelay)
		if err != nil {
			return fmt.Errorf("parsing profile retryDelay: %w", err)
		}
		retryDelay = d
	}
	return nil
}

// resolveOutputPath picks the destination: explicit flag, then the server's
// suggested file name, then the last URL path element.
func resolveOutputPath(rawURL string, info download.ResourceInfo) string {
	name := outputName
	if name == "" {
		name = info.SuggestedName
	}
	if name == "" {
		if parsed, err := u.Parse(rawURL); err == nil {
			if unescaped, err := u.PathUnescape(filepath.Base(parsed.Path)); err == nil {
				name = unescaped
			}
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	path := filepath.Join(outputDir, name)
	if _, err := os.Stat(path); err == nil {
		path = utils.RenewOutputPath(path)
	}
	return path
}

func setupLogFile() string {
	if noLogFile {
		return "-"
	}
	logPath := filepath.Join("logs", time.Now().Format(time.DateOnly)+".log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return "-"
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "-"
	}
	utils.SetLogOutput(f)
	return logPath
}

func printBanner(outputPath, logPath string, info download.ResourceInfo) {
	ranges := output.FError("no")
	if info.AcceptRanges {
		ranges = output.FSuccess("yes")
	}
	size := "unknown"
	if info.Size > 0 {
		size = humanize.IBytes(uint64(info.Size))
	}
	output.PrintHeader("hsget " + HSGetVersion)
	output.PrintDetail(fmt.Sprintf("  destination %s %s", output.StyleSymbols["arrow"], outputPath))
	output.PrintDetail(fmt.Sprintf("  log file    %s %s", output.StyleSymbols["arrow"], logPath))
	output.PrintDetail(fmt.Sprintf("  ranged      %s %s", output.StyleSymbols["arrow"], ranges))
	output.PrintDetail(fmt.Sprintf("  size        %s %s", output.StyleSymbols["arrow"], size))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&outputName, "output", "o", "", "Output file name (defaults to server-suggested or URL name)")
	rootCmd.Flags().StringVarP(&outputDir, "dir", "D", "downloads", "Directory to save the file into")
	rootCmd.Flags().IntVarP(&connections, "connections", "c", download.DefaultAdmissionLimit, "Maximum concurrent segment fetches")
	rootCmd.Flags().IntVar(&blockCount, "blocks", download.DefaultBlockCount, "Segment count for small resources")
	rootCmd.Flags().IntVar(&blockSizeMB, "block-size", 10, "Segment size in MB for large resources")
	rootCmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method override")
	rootCmd.Flags().StringVarP(&body, "data", "d", "", "Request body")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as 'Key: Value' (repeatable)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Per-request timeout")
	rootCmd.Flags().DurationVar(&kaTimeout, "ka-timeout", 60*time.Second, "Keep-alive timeout")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "A", "", "User agent ('randomize' picks a browser UA)")
	rootCmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP/HTTPS proxy URL")
	rootCmd.Flags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username")
	rootCmd.Flags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password")
	rootCmd.Flags().IntVar(&retries, "retries", download.DefaultMaxAttempts, "Attempts per segment before the download is abandoned")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", download.DefaultRetryDelay, "Fixed wait between attempts")
	rootCmd.Flags().DurationVar(&retryJitter, "retry-jitter", download.DefaultRetryJitterMax, "Maximum random extra wait between attempts")
	rootCmd.Flags().StringVar(&profilePath, "profile", "", "YAML request profile file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress display")
	rootCmd.Flags().BoolVar(&noLogFile, "no-logfile", false, "Disable the per-day log file")
}
