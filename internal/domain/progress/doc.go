// Package progress contains the gamification domain model of MajorPath.
//
// A single UserProgress record per user holds everything the engine needs:
// exploration sets, assessment records, per-major completion, sticky
// achievements, goals, the activity window, streak counters, the welcome
// challenge cursor and the point/level accumulators.
//
// # Components
//
//   - Streak Tracker: UpdateStreak, WeeklyProgress
//   - Achievement Evaluator: EvaluateAchievements
//   - Goal Tracker: RefreshGoals, SuggestGoal, CreateGoal, CompleteGoal,
//     RemoveGoal, EditGoal, UpdateGoalProgress
//   - Challenge Sequencer: CurrentChallenge, CompleteChallenge
//   - Progress Aggregator: ComputeOverallProgress, LevelForExperience
//
// Every mutator works on an in-memory record. Persisting the change is the
// caller's job: compute a Patch with Diff and hand it to a Repository.
//
// # Architecture
//
//  1. Zero external dependencies, only the standard library and the shared package
//  2. Time and identifiers are injected through Env, never read from ambient state
//  3. Repository and ActivityFeed are ports implemented in infrastructure
//
// Typical flow:
//
//	env := progress.Env{Catalog: catalog, Today: "2025-03-02", Now: now, NewID: uuid.NewString}
//	p := progress.NewUserProgress("user-1", now)
//	progress.UpdateStreak(p, env.Today)
//	progress.EvaluateAchievements(p, env)
//	patch := progress.Diff(before, p)
package progress
