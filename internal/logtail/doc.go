// Package logtail reads the tail of the cadsync log file.
//
// Read keeps only the last maxLines lines in a ring buffer and returns them
// oldest first. A missing file is reported as no lines.
//
// The log file is written by logrus' text formatter, so every entry carries
// a "level=" field. Level extracts it and Filter keeps entries at or above
// a minimum severity:
//
//	lines, err := logtail.Read(path, 200)
//	if err != nil {
//		return err
//	}
//	warnings := logtail.Filter(lines, logrus.WarnLevel)
package logtail
