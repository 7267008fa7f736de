package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ccollins476ad/awemescrape/aweme"
	"github.com/ccollins476ad/awemescrape/config"
	"github.com/ccollins476ad/awemescrape/download"
	"github.com/ccollins476ad/awemescrape/fileutil"
	"github.com/ccollins476ad/awemescrape/media"
	"github.com/ccollins476ad/awemescrape/web"
	log "github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

// LinksDir is the folder receiving downloads from a link list.
const LinksDir = "links"

// queueJob adds a job to the store after creating its folder. Duplicate
// destinations are expected when feeds overlap and are only logged.
func queueJob(s *download.Store, job download.Job) bool {
	if err := fileutil.EnsureDir(filepath.Dir(job.Path)); err != nil {
		log.WithError(err).Errorf("cannot create folder for %s", job.Path)
		return false
	}

	err := s.Add(job)
	switch {
	case err == nil:
		return true
	case errors.Is(err, download.ErrAlreadyQueued):
		log.Debugf("skipping duplicate: %v", err)
	default:
		log.WithError(err).Warnf("rejecting job: url=%s", job.URL)
	}
	return false
}

// processFeeds reads every feed file below the data directory and queues the
// jobs of its records. At most cfg.DownloadNum records are expanded when it is
// positive. It returns the number of queued jobs. An unreadable data
// directory is an error; an unreadable feed file is logged and skipped.
func processFeeds(cfg *config.Config, s *download.Store) (int, error) {
	if fileutil.FileExists(cfg.DataDir) && !fileutil.IsDir(cfg.DataDir) {
		return 0, fmt.Errorf("not a directory: %s", cfg.DataDir)
	}

	filenames, err := fileutil.FindFiles(cfg.DataDir, ".json")
	if err != nil {
		return 0, err
	}
	log.Infof("found %d feed file(s) in %s", len(filenames), cfg.DataDir)

	planner := media.Planner{
		Quality:       cfg.Quality,
		MinValidBytes: cfg.MinValidBytes,
	}

	queued := 0
	records := 0
	for _, filename := range filenames {
		feed, err := aweme.ReadFeed(filename)
		if err != nil {
			log.WithError(err).Warnf("skipping feed file: %s", filename)
			continue
		}
		log.Debugf("read %s: %d record(s), %d skipped", filename, len(feed.Records), feed.Skipped)

		feedDir := filepath.Dir(filename)
		for _, r := range feed.Records {
			if cfg.DownloadNum > 0 && records >= cfg.DownloadNum {
				log.Infof("reached download_num=%d, not expanding further records", cfg.DownloadNum)
				return queued, nil
			}
			records++

			for _, job := range planner.Plan(feedDir, r) {
				if queueJob(s, job) {
					queued++
				}
			}
		}
	}

	return queued, nil
}

// linksDir returns the folder for link-list downloads: below the data
// directory if there is one, otherwise next to the link list.
func linksDir(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, LinksDir)
	}
	return filepath.Join(filepath.Dir(cfg.URLsFile), LinksDir)
}

// processLinks queues every http(s) url found in the link list. Files are
// named after their url. It returns the number of queued jobs.
func processLinks(cfg *config.Config, s *download.Store) (int, error) {
	b, err := os.ReadFile(cfg.URLsFile)
	if err != nil {
		return 0, err
	}

	dir := linksDir(cfg)
	urls := xurls.Strict().FindAllString(string(b), -1)
	log.Infof("found %d link(s) in %s", len(urls), cfg.URLsFile)

	queued := 0
	for _, u := range urls {
		name, err := download.URLToFilename(u)
		if err != nil {
			log.WithError(err).Warnf("skipping link: %s", u)
			continue
		}

		job := download.NewJob(u, filepath.Join(dir, name), media.KindLink)
		if cfg.MinValidBytes > 0 {
			job.MinValidBytes = cfg.MinValidBytes
		}
		if queueJob(s, job) {
			queued++
		}
	}

	return queued, nil
}

// writeGalleries writes an index.html into every images folder that received
// at least one image in this run. Failures are logged.
func writeGalleries(rep *download.Report) {
	byDir := map[string][]string{}
	for _, o := range rep.Outcomes {
		if !o.OK() || o.Job.Kind != media.KindImage {
			continue
		}
		dir := filepath.Dir(o.Job.Path)
		byDir[dir] = append(byDir[dir], filepath.Base(o.Job.Path))
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		names := byDir[dir]
		sort.Strings(names)

		// The record folder names the post.
		title := filepath.Base(filepath.Dir(dir))
		if err := web.WriteGallery(dir, title, names); err != nil {
			log.WithError(err).Warnf("cannot write gallery in %s", dir)
		}
	}
}
