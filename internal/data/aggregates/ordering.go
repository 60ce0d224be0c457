package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	types "github.com/courseloom/courseloom-backend/internal/domain"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OrderingAggregateDeps struct {
	Base BaseDeps

	Courses  repos.CourseRepo
	Sections repos.SectionRepo
	Lessons  repos.LessonRepo
	Progress repos.LessonProgressRepo
	Attempts repos.QuizAttemptRepo
}

type orderingAggregate struct {
	deps OrderingAggregateDeps
}

func NewOrderingAggregate(deps OrderingAggregateDeps) domainagg.OrderingAggregate {
	deps.Base = deps.Base.withDefaults()
	return &orderingAggregate{deps: deps}
}

func (a *orderingAggregate) Contract() domainagg.Contract {
	return domainagg.OrderingAggregateContract
}

func (a *orderingAggregate) CreateSection(ctx context.Context, in domainagg.CreateSectionInput) (domainagg.CreateSectionResult, error) {
	const op = "Content.Ordering.CreateSection"
	var out domainagg.CreateSectionResult
	if in.CourseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if a.deps.Courses == nil || a.deps.Sections == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ordering aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.LockByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", in.CourseID.String()), nil)
		}
		if err := requireCourseOwner(op, course, in.ActorID); err != nil {
			return err
		}

		highest, err := a.deps.Sections.MaxPosition(dbc, course.ID)
		if err != nil {
			return err
		}
		pos := resolvePosition(in.DesiredPosition, highest+1)
		if pos <= highest {
			if err := a.deps.Sections.ShiftPositionsFrom(dbc, course.ID, pos, 1); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		section := &types.Section{
			ID:        uuid.New(),
			CourseID:  course.ID,
			Title:     title,
			Position:  pos,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := a.deps.Sections.Create(dbc, []*types.Section{section}); err != nil {
			return err
		}

		list, err := a.deps.Sections.ListByCourse(dbc, course.ID)
		if err != nil {
			return err
		}
		out = domainagg.CreateSectionResult{
			Section:        *section,
			CourseSections: derefSections(list),
		}
		return nil
	})
	return out, err
}

func (a *orderingAggregate) InsertLesson(ctx context.Context, in domainagg.InsertLessonInput) (domainagg.InsertLessonResult, error) {
	const op = "Content.Ordering.InsertLesson"
	var out domainagg.InsertLessonResult
	if in.SectionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing section_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if !learning.ValidLessonType(in.Type) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown lesson type %q", in.Type), nil)
	}
	if in.EstimatedTime < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "estimated_time must be >= 0", nil)
	}
	if in.Content != nil {
		if in.Content.Type != in.Type {
			return out, domainagg.NewError(domainagg.CodeValidation, op, "content payload does not match lesson type", nil)
		}
		if err := in.Content.Validate(); err != nil {
			return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
		}
	}
	if in.QuizSettings != nil && in.Type != learning.LessonTypeQuiz {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "quiz settings on a non-quiz lesson", nil)
	}
	if a.deps.Courses == nil || a.deps.Sections == nil || a.deps.Lessons == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ordering aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		probe, err := a.deps.Sections.GetByID(dbc, in.SectionID)
		if err != nil {
			return err
		}
		if probe == nil || probe.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", in.SectionID.String()), nil)
		}
		course, err := a.deps.Courses.LockByID(dbc, probe.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", probe.CourseID.String()), nil)
		}
		if err := requireCourseOwner(op, course, in.ActorID); err != nil {
			return err
		}
		section, err := a.deps.Sections.LockByID(dbc, in.SectionID)
		if err != nil {
			return err
		}
		if section == nil || section.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", in.SectionID.String()), nil)
		}

		highest, err := a.deps.Lessons.MaxPosition(dbc, section.ID)
		if err != nil {
			return err
		}
		pos := resolvePosition(in.DesiredPosition, highest+1)
		if pos <= highest {
			if err := a.deps.Lessons.ShiftPositionsFrom(dbc, section.ID, pos, 1); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		lesson := &types.Lesson{
			ID:            uuid.New(),
			CourseID:      section.CourseID,
			SectionID:     section.ID,
			Title:         title,
			Type:          in.Type,
			Position:      pos,
			IsVisible:     true,
			IsRequired:    true,
			EstimatedTime: in.EstimatedTime,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if in.IsVisible != nil {
			lesson.IsVisible = *in.IsVisible
		}
		if in.IsRequired != nil {
			lesson.IsRequired = *in.IsRequired
		}
		if in.Content != nil {
			raw, err := json.Marshal(in.Content)
			if err != nil {
				return err
			}
			lesson.Content = datatypes.JSON(raw)
		}
		if in.QuizSettings != nil {
			raw, err := json.Marshal(in.QuizSettings)
			if err != nil {
				return err
			}
			lesson.QuizSettingsJSON = datatypes.JSON(raw)
		}
		if _, err := a.deps.Lessons.Create(dbc, []*types.Lesson{lesson}); err != nil {
			return err
		}
		if err := a.deps.Courses.IncrementTotalLessons(dbc, course.ID, 1); err != nil {
			return err
		}

		list, err := a.deps.Lessons.ListBySection(dbc, section.ID)
		if err != nil {
			return err
		}
		out = domainagg.InsertLessonResult{
			Lesson:         *lesson,
			SectionLessons: derefLessons(list),
		}
		return nil
	})
	return out, err
}

func (a *orderingAggregate) DeleteLesson(ctx context.Context, in domainagg.DeleteLessonInput) (domainagg.DeleteLessonResult, error) {
	const op = "Content.Ordering.DeleteLesson"
	var out domainagg.DeleteLessonResult
	if in.LessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing lesson_id", nil)
	}
	if a.deps.Courses == nil || a.deps.Sections == nil || a.deps.Lessons == nil || a.deps.Progress == nil || a.deps.Attempts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ordering aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		probe, err := a.deps.Lessons.GetByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if probe == nil || probe.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}
		course, err := a.deps.Courses.LockByID(dbc, probe.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", probe.CourseID.String()), nil)
		}
		if err := requireCourseOwner(op, course, in.ActorID); err != nil {
			return err
		}
		section, err := a.deps.Sections.LockByID(dbc, probe.SectionID)
		if err != nil {
			return err
		}
		if section == nil || section.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", probe.SectionID.String()), nil)
		}
		lesson, err := a.deps.Lessons.LockByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil || lesson.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}

		ids := []uuid.UUID{lesson.ID}
		if err := a.deps.Lessons.SoftDeleteByIDs(dbc, ids); err != nil {
			return err
		}
		if err := a.deps.Lessons.ShiftPositionsAfter(dbc, section.ID, lesson.Position, -1); err != nil {
			return err
		}
		if err := a.deps.Courses.IncrementTotalLessons(dbc, course.ID, -1); err != nil {
			return err
		}
		// progress and attempt rows follow the lesson out; enrollments are not
		// eagerly recomputed here, the next interaction or refresh heals them
		if err := a.deps.Progress.SoftDeleteByLessonIDs(dbc, ids); err != nil {
			return err
		}
		if err := a.deps.Attempts.SoftDeleteByLessonIDs(dbc, ids); err != nil {
			return err
		}

		list, err := a.deps.Lessons.ListBySection(dbc, section.ID)
		if err != nil {
			return err
		}
		out = domainagg.DeleteLessonResult{
			SectionID:      section.ID,
			SectionLessons: derefLessons(list),
		}
		return nil
	})
	return out, err
}

func (a *orderingAggregate) MoveLesson(ctx context.Context, in domainagg.MoveLessonInput) (domainagg.MoveLessonResult, error) {
	const op = "Content.Ordering.MoveLesson"
	var out domainagg.MoveLessonResult
	if in.LessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing lesson_id", nil)
	}
	if in.ToSectionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing to_section_id", nil)
	}
	if a.deps.Courses == nil || a.deps.Sections == nil || a.deps.Lessons == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ordering aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		probe, err := a.deps.Lessons.GetByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if probe == nil || probe.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}
		if in.FromSectionID != uuid.Nil && probe.SectionID != in.FromSectionID {
			return ConflictError("lesson is no longer in the declared source section")
		}
		course, err := a.deps.Courses.LockByID(dbc, probe.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", probe.CourseID.String()), nil)
		}
		if err := requireCourseOwner(op, course, in.ActorID); err != nil {
			return err
		}
		src, err := a.deps.Sections.LockByID(dbc, probe.SectionID)
		if err != nil {
			return err
		}
		if src == nil || src.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", probe.SectionID.String()), nil)
		}
		dest := src
		if in.ToSectionID != src.ID {
			dest, err = a.deps.Sections.LockByID(dbc, in.ToSectionID)
			if err != nil {
				return err
			}
			if dest == nil || dest.ID == uuid.Nil {
				return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", in.ToSectionID.String()), nil)
			}
			if dest.CourseID != src.CourseID {
				return InvariantError("cannot move a lesson across courses")
			}
		}
		lesson, err := a.deps.Lessons.LockByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil || lesson.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}
		if lesson.SectionID != src.ID {
			return ConflictError("lesson moved concurrently")
		}

		if dest.ID == src.ID {
			count, err := a.deps.Lessons.CountBySection(dbc, src.ID)
			if err != nil {
				return err
			}
			target := resolvePosition(in.NewPosition, int(count))
			if target != lesson.Position {
				// park at 0, close the old gap, open the new slot, land
				if err := a.deps.Lessons.UpdatePosition(dbc, lesson.ID, 0); err != nil {
					return err
				}
				if err := a.deps.Lessons.ShiftPositionsAfter(dbc, src.ID, lesson.Position, -1); err != nil {
					return err
				}
				if err := a.deps.Lessons.ShiftPositionsFrom(dbc, src.ID, target, 1); err != nil {
					return err
				}
				if err := a.deps.Lessons.UpdatePosition(dbc, lesson.ID, target); err != nil {
					return err
				}
			}
			list, err := a.deps.Lessons.ListBySection(dbc, src.ID)
			if err != nil {
				return err
			}
			lessons := derefLessons(list)
			out = domainagg.MoveLessonResult{
				SourceSectionID: src.ID,
				DestSectionID:   src.ID,
				SourceLessons:   lessons,
				DestLessons:     lessons,
			}
			return nil
		}

		destCount, err := a.deps.Lessons.CountBySection(dbc, dest.ID)
		if err != nil {
			return err
		}
		target := resolvePosition(in.NewPosition, int(destCount)+1)
		if err := a.deps.Lessons.ShiftPositionsAfter(dbc, src.ID, lesson.Position, -1); err != nil {
			return err
		}
		if err := a.deps.Lessons.ShiftPositionsFrom(dbc, dest.ID, target, 1); err != nil {
			return err
		}
		if err := a.deps.Lessons.MoveToSection(dbc, lesson.ID, dest.ID, target); err != nil {
			return err
		}

		srcList, err := a.deps.Lessons.ListBySection(dbc, src.ID)
		if err != nil {
			return err
		}
		destList, err := a.deps.Lessons.ListBySection(dbc, dest.ID)
		if err != nil {
			return err
		}
		out = domainagg.MoveLessonResult{
			SourceSectionID: src.ID,
			DestSectionID:   dest.ID,
			SourceLessons:   derefLessons(srcList),
			DestLessons:     derefLessons(destList),
		}
		return nil
	})
	return out, err
}

func (a *orderingAggregate) ReorderSection(ctx context.Context, in domainagg.ReorderSectionInput) (domainagg.ReorderSectionResult, error) {
	const op = "Content.Ordering.ReorderSection"
	var out domainagg.ReorderSectionResult
	if in.SectionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing section_id", nil)
	}
	if len(in.Pairs) == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing position assignment", nil)
	}
	if a.deps.Courses == nil || a.deps.Sections == nil || a.deps.Lessons == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "ordering aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		probe, err := a.deps.Sections.GetByID(dbc, in.SectionID)
		if err != nil {
			return err
		}
		if probe == nil || probe.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", in.SectionID.String()), nil)
		}
		course, err := a.deps.Courses.LockByID(dbc, probe.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", probe.CourseID.String()), nil)
		}
		if err := requireCourseOwner(op, course, in.ActorID); err != nil {
			return err
		}
		section, err := a.deps.Sections.LockByID(dbc, in.SectionID)
		if err != nil {
			return err
		}
		if section == nil || section.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("section not found: %s", in.SectionID.String()), nil)
		}

		rows, err := a.deps.Lessons.ListBySection(dbc, section.ID)
		if err != nil {
			return err
		}
		n := len(rows)
		if len(in.Pairs) != n {
			return ValidationError(fmt.Sprintf("assignment must cover every lesson: section has %d, got %d pairs", n, len(in.Pairs)))
		}
		inSection := make(map[uuid.UUID]bool, n)
		for _, r := range rows {
			inSection[r.ID] = true
		}
		assigned := make(map[uuid.UUID]int, n)
		seenPos := make(map[int]bool, n)
		for _, p := range in.Pairs {
			if p.LessonID == uuid.Nil {
				return ValidationError("pair with missing lesson_id")
			}
			if !inSection[p.LessonID] {
				return ValidationError(fmt.Sprintf("lesson %s is not in the section", p.LessonID.String()))
			}
			if _, dup := assigned[p.LessonID]; dup {
				return ValidationError(fmt.Sprintf("duplicate lesson %s in assignment", p.LessonID.String()))
			}
			if p.Position < 1 || p.Position > n {
				return ValidationError(fmt.Sprintf("position %d out of range [1..%d]", p.Position, n))
			}
			if seenPos[p.Position] {
				return ValidationError(fmt.Sprintf("duplicate position %d in assignment", p.Position))
			}
			assigned[p.LessonID] = p.Position
			seenPos[p.Position] = true
		}
		// full cover + no duplicates + in range ⇒ exact permutation of [1..n]
		if err := a.deps.Lessons.UpdatePositions(dbc, section.ID, assigned); err != nil {
			return err
		}

		list, err := a.deps.Lessons.ListBySection(dbc, section.ID)
		if err != nil {
			return err
		}
		out = domainagg.ReorderSectionResult{SectionLessons: derefLessons(list)}
		return nil
	})
	return out, err
}

// resolvePosition clamps a requested position into [1, ceiling]; nil means
// append, i.e. the ceiling itself.
func resolvePosition(desired *int, ceiling int) int {
	if ceiling < 1 {
		ceiling = 1
	}
	if desired == nil {
		return ceiling
	}
	p := *desired
	if p < 1 {
		return 1
	}
	if p > ceiling {
		return ceiling
	}
	return p
}

// requireCourseOwner enforces instructor ownership when an actor is supplied.
// uuid.Nil means the caller already authorized an admin or system actor.
func requireCourseOwner(op string, course *types.Course, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return nil
	}
	if course == nil || course.InstructorID != actorID {
		return domainagg.NewError(domainagg.CodeForbidden, op, "actor does not own the course", nil)
	}
	return nil
}

func derefSections(rows []*types.Section) []learning.Section {
	out := make([]learning.Section, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func derefLessons(rows []*types.Lesson) []learning.Lesson {
	out := make([]learning.Lesson, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
