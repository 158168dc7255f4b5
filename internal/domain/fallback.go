package domain

// FallbackRoutine is the compiled-in routine used when generation fails.
// Block durations scale with the requested minutes in a 20/47/33 split.
func FallbackRoutine(profile Profile) Routine {
	minutes := profile.DurationMinutes
	if minutes < MinRoutineMinutes || minutes > MaxRoutineMinutes {
		minutes = DefaultRoutineMinutes
	}
	total := minutes * 60
	mind := total * 20 / 100
	move := total * 47 / 100
	core := total - mind - move

	return Routine{
		Title:                "Essential Wellness Flow",
		FocusArea:            "Balance and Mindfulness",
		TotalDurationMinutes: minutes,
		DifficultyLevel:      2,
		CompletionXP:         75,
		DailyWisdom:          "The journey of a thousand miles begins with a single step. Today, you take that step.",
		Source:               SourceFallback,
		Blocks: []ExerciseBlock{
			{
				Category:        CategoryMind,
				Name:            "Centering Breath",
				DurationSeconds: mind,
				Instructions: []string{
					"Sit comfortably with spine straight",
					"Close your eyes and breathe naturally",
					"Focus on your breath",
				},
				Difficulty: 1,
				AudioCue:   "Welcome to your practice. Let's begin by finding your center through mindful breathing.",
				Benefits:   []string{"Reduces stress", "Improves focus"},
			},
			{
				Category:        CategoryMove,
				Name:            "Flowing Water",
				DurationSeconds: move,
				Instructions: []string{
					"Stand with feet shoulder-width apart",
					"Raise arms slowly like flowing water",
					"Move with smooth, continuous motion",
					"Focus on breath and movement harmony",
				},
				Difficulty: 2,
				AudioCue:   "Move like water, smooth and continuous. Let your body flow with natural grace.",
				Benefits:   []string{"Improves flexibility", "Enhances coordination"},
			},
			{
				Category:        CategoryCore,
				Name:            "Gentle Strength",
				DurationSeconds: core,
				Instructions: []string{
					"Modified plank against wall",
					"Hold for 30 seconds, rest 30 seconds",
					"Repeat 5 times with mindful breathing",
				},
				Difficulty: 2,
				AudioCue:   "Build strength from your center. Breathe deeply and hold with intention.",
				Benefits:   []string{"Strengthens core", "Improves posture"},
			},
		},
	}
}
