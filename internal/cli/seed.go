package cli

import (
	"fmt"
	"strings"

	"event-quiz-service/internal/domain"
)

type demoQuestion struct {
	text    string
	options [4]string
	correct int
	level   string
}

var demoQuestions = []demoQuestion{
	{"Which HTTP status code means Conflict?", [4]string{"400", "404", "409", "500"}, 2, "easy"},
	{"What does DNS resolve?", [4]string{"Hostnames to IP addresses", "IP addresses to MAC addresses", "Ports to services", "URLs to files"}, 0, "easy"},
	{"Which data structure is FIFO?", [4]string{"Stack", "Queue", "Tree", "Heap"}, 1, "easy"},
	{"What is the time complexity of binary search?", [4]string{"O(n)", "O(n log n)", "O(1)", "O(log n)"}, 3, "medium"},
	{"Which protocol is connectionless?", [4]string{"TCP", "UDP", "HTTP/1.1", "SSH"}, 1, "easy"},
	{"What does ACID stand for in databases?", [4]string{"Atomicity, Consistency, Isolation, Durability", "Access, Control, Integrity, Data", "Async, Cached, Indexed, Distributed", "None of these"}, 0, "medium"},
	{"Which sensor measures acceleration?", [4]string{"Thermistor", "Accelerometer", "Photodiode", "Hall sensor"}, 1, "easy"},
	{"What is the default port for HTTPS?", [4]string{"80", "8080", "443", "22"}, 2, "easy"},
	{"Which sort is stable?", [4]string{"Quick sort", "Heap sort", "Selection sort", "Merge sort"}, 3, "medium"},
	{"What does a race condition depend on?", [4]string{"Timing of concurrent operations", "Compiler version", "Screen size", "Disk format"}, 0, "medium"},
	{"Which logic gate outputs 1 only when inputs differ?", [4]string{"AND", "OR", "XOR", "NAND"}, 2, "easy"},
	{"What does an index usually speed up?", [4]string{"Writes", "Reads", "Backups", "Schema changes"}, 1, "hard"},
}

// demoData returns participants and questions for running without Postgres.
func demoData() ([]domain.Participant, []domain.Question) {
	var (
		participants []domain.Participant
		questions    []domain.Question
	)
	for i, event := range domain.Events {
		slug := strings.ToLower(strings.ReplaceAll(string(event), " ", ""))
		participants = append(participants, domain.Participant{
			ID:           fmt.Sprintf("demo-%s", slug),
			Email:        fmt.Sprintf("lead@%s.example.com", slug),
			Event:        event,
			TeamCode:     fmt.Sprintf("T%03d", i+1),
			TeamName:     fmt.Sprintf("Team %s", event),
			TeamLeadName: "Demo Lead",
			CollegeName:  "Demo College",
		})
		for j, q := range demoQuestions {
			questions = append(questions, domain.Question{
				ID:            fmt.Sprintf("%s-%02d", slug, j+1),
				Event:         event,
				Text:          q.text,
				Options:       q.options[:],
				CorrectOption: q.correct,
				Difficulty:    q.level,
				Category:      "general",
				Points:        domain.DefaultPoints,
				TimeLimit:     domain.DefaultTimeLimit,
				Active:        true,
			})
		}
	}
	return participants, questions
}
