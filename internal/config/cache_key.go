package config

import "fmt"

type CacheKeyStruct struct{}

// SessionSnapshotKey returns the Redis key for the best-effort session
// mirror. Both ids are part of the key so a snapshot can never be read in
// the wrong (exam, student) context.
func (r *CacheKeyStruct) SessionSnapshotKey(examID, studentID string) string {
	return fmt.Sprintf("session:%s:%s:snapshot", examID, studentID)
}

// ExamPaperKey returns the Redis key for a published exam's student paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

var CacheKey = &CacheKeyStruct{}
