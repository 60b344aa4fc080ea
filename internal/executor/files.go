package executor

import (
	"path/filepath"
	"regexp"
	"strings"

	"whenthen/internal/domain"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".ts": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".aac": true, ".ogg": true, ".wav": true,
	".m4a": true, ".wma": true, ".opus": true,
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".ass": true, ".ssa": true, ".sub": true, ".vtt": true,
	".idx": true,
}

// SelectFiles applies a playlet's file filter to a content's file list. A nil
// filter selects everything. An invalid name pattern selects nothing, matching
// the condition evaluator's treatment of bad regexes.
func SelectFiles(filter *domain.FileFilter, files []domain.FileInfo) []domain.FileInfo {
	if filter == nil {
		return files
	}

	selected := make([]domain.FileInfo, 0, len(files))
	var namePattern *regexp.Regexp
	if filter.NamePattern != "" {
		re, err := regexp.Compile("(?i)" + filter.NamePattern)
		if err != nil {
			return nil
		}
		namePattern = re
	}

	for _, file := range files {
		if !matchesCategory(filter, file) {
			continue
		}
		if filter.MinSize > 0 && file.Size < filter.MinSize {
			continue
		}
		if namePattern != nil && !namePattern.MatchString(file.Name) {
			continue
		}
		selected = append(selected, file)
	}

	if filter.SelectLargest && len(selected) > 1 {
		largest := selected[0]
		for _, file := range selected[1:] {
			if file.Size > largest.Size {
				largest = file
			}
		}
		return []domain.FileInfo{largest}
	}
	return selected
}

func matchesCategory(filter *domain.FileFilter, file domain.FileInfo) bool {
	ext := strings.ToLower(filepath.Ext(file.Name))
	switch filter.Category {
	case domain.FilterVideo:
		return videoExtensions[ext]
	case domain.FilterAudio:
		return audioExtensions[ext]
	case domain.FilterSubtitle:
		return subtitleExtensions[ext]
	case domain.FilterCustom:
		for _, custom := range filter.CustomExtensions {
			if strings.EqualFold(strings.TrimPrefix(custom, "."), strings.TrimPrefix(ext, ".")) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
