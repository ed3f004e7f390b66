package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

const latestReleaseURL = "https://api.github.com/repos/agriassist/agriassist-cli/releases/latest"

// UpgradeInfo describes the running version relative to the latest release.
type UpgradeInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	UpdateAvailable bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the CLI version and check for updates",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agriassist %s\n", Version)

		info, err := checkForUpgrade(Version, getHTTPClientWithTimeout(5*time.Second))
		if err != nil {
			logDebug(fmt.Sprintf("upgrade check failed: %v", err))
			return
		}
		if info.UpdateAvailable {
			fmt.Fprintf(os.Stderr, "🚀 A new release (%s) is available: %s\n", info.LatestVersion, info.ReleaseURL)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// checkForUpgrade fetches the latest release tag and compares it against the
// running version using semver. A non-semver running version (dev builds)
// never reports an available update.
func checkForUpgrade(current string, client HTTPClient) (*UpgradeInfo, error) {
	req, err := http.NewRequest("GET", latestReleaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, err
	}

	return compareVersions(current, release.TagName, release.HTMLURL)
}

// compareVersions builds an UpgradeInfo from the current and latest version
// strings. Leading "v" prefixes are tolerated on both sides.
func compareVersions(current, latest, releaseURL string) (*UpgradeInfo, error) {
	info := &UpgradeInfo{
		CurrentVersion: current,
		LatestVersion:  strings.TrimPrefix(latest, "v"),
		ReleaseURL:     releaseURL,
	}

	latestVer, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return nil, fmt.Errorf("latest release tag %q is not semver: %w", latest, err)
	}
	currentVer, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		// Dev and locally built binaries don't carry a comparable version.
		return info, nil
	}

	info.UpdateAvailable = latestVer.GreaterThan(currentVer)
	return info, nil
}
