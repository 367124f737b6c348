package domain

import "time"

// Course is a read-only catalog entry of the learning deployment.
type Course struct {
	ID          string
	Title       string
	Description string
	Thumbnail   string
	Instructor  Instructor
	Modules     []CourseModule
}

// Instructor describes who teaches a course.
type Instructor struct {
	Name   string
	Bio    string
	Avatar string
}

// CourseModule groups lessons of a course.
type CourseModule struct {
	ID      string
	Title   string
	Lessons []Lesson
}

// Lesson is a single lecture inside a module.
type Lesson struct {
	ID          string
	Title       string
	Description string
	VideoURL    string
}

// LessonCount returns the total number of lessons across all modules.
func (c Course) LessonCount() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	return total
}

// HasLesson reports whether lessonID belongs to the course.
func (c Course) HasLesson(lessonID string) bool {
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == lessonID {
				return true
			}
		}
	}
	return false
}

// Progress returns the completion percentage for the given number of completed lessons.
func (c Course) Progress(completed int) int {
	total := c.LessonCount()
	if total == 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}

// Product is a read-only catalog entry of the storefront deployment.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Stock       int
	Category    string
	State       string
	Image       string
	CreatedAt   time.Time
}

// LowStockThreshold marks products that admins are alerted about.
const LowStockThreshold = 5
