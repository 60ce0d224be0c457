package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	userdom "github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// SectionOutline is one section plus its ordered lessons, as returned by the
// course outline read.
type SectionOutline struct {
	Section learning.Section  `json:"section"`
	Lessons []learning.Lesson `json:"lessons"`
}

// ContentService fronts the ordering aggregate for the HTTP surface: it
// resolves the acting user, applies role gating, and delegates every
// position-changing write to the aggregate's serialized transactions.
type ContentService interface {
	CreateSection(ctx context.Context, in domainagg.CreateSectionInput) (domainagg.CreateSectionResult, error)
	RenameSection(ctx context.Context, sectionID uuid.UUID, title string) (learning.Section, error)
	InsertLesson(ctx context.Context, in domainagg.InsertLessonInput) (domainagg.InsertLessonResult, error)
	DeleteLesson(ctx context.Context, lessonID uuid.UUID) (domainagg.DeleteLessonResult, error)
	MoveLesson(ctx context.Context, in domainagg.MoveLessonInput) (domainagg.MoveLessonResult, error)
	ReorderSection(ctx context.Context, in domainagg.ReorderSectionInput) (domainagg.ReorderSectionResult, error)

	// GetCourseOutline lists sections and lessons in stored order. Callers
	// without ownership see visible lessons only.
	GetCourseOutline(ctx context.Context, courseID uuid.UUID) ([]SectionOutline, error)
}

type contentService struct {
	db       *gorm.DB
	log      *logger.Logger
	ordering domainagg.OrderingAggregate
	courses  repos.CourseRepo
	sections repos.SectionRepo
	lessons  repos.LessonRepo
}

func NewContentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ordering domainagg.OrderingAggregate,
	courses repos.CourseRepo,
	sections repos.SectionRepo,
	lessons repos.LessonRepo,
) ContentService {
	return &contentService{
		db:       db,
		log:      baseLog.With("service", "ContentService"),
		ordering: ordering,
		courses:  courses,
		sections: sections,
		lessons:  lessons,
	}
}

// actorForWrite resolves the acting user for an ordering mutation. Admins
// come back as uuid.Nil, which the aggregate treats as pre-authorized;
// students are rejected before any transaction starts.
func actorForWrite(ctx context.Context, op string) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	switch rd.Role {
	case userdom.RoleAdmin:
		return uuid.Nil, nil
	case userdom.RoleInstructor:
		return rd.UserID, nil
	default:
		return uuid.Nil, domainagg.NewError(domainagg.CodeForbidden, op, "content writes require the instructor role", nil)
	}
}

func (s *contentService) CreateSection(ctx context.Context, in domainagg.CreateSectionInput) (domainagg.CreateSectionResult, error) {
	actor, err := actorForWrite(ctx, "Content.Service.CreateSection")
	if err != nil {
		return domainagg.CreateSectionResult{}, err
	}
	in.ActorID = actor
	return s.ordering.CreateSection(ctx, in)
}

func (s *contentService) RenameSection(ctx context.Context, sectionID uuid.UUID, title string) (learning.Section, error) {
	const op = "Content.Service.RenameSection"
	var out learning.Section

	actor, err := actorForWrite(ctx, op)
	if err != nil {
		return out, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if sectionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing section_id", nil)
	}

	// Rename never touches positions, so it runs as a plain service
	// transaction instead of going through the ordering aggregate.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		section, err := s.sections.GetByID(dbc, sectionID)
		if err != nil {
			return err
		}
		if section == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "section not found", nil)
		}
		course, err := s.courses.GetByID(dbc, section.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "course not found", nil)
		}
		if actor != uuid.Nil && course.InstructorID != actor {
			return domainagg.NewError(domainagg.CodeForbidden, op, "actor does not own the course", nil)
		}
		if err := s.sections.UpdateFields(dbc, sectionID, map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}
		section.Title = title
		out = *section
		return nil
	})
	if err != nil {
		return learning.Section{}, mapServiceError(op, err)
	}
	return out, nil
}

func (s *contentService) InsertLesson(ctx context.Context, in domainagg.InsertLessonInput) (domainagg.InsertLessonResult, error) {
	actor, err := actorForWrite(ctx, "Content.Service.InsertLesson")
	if err != nil {
		return domainagg.InsertLessonResult{}, err
	}
	in.ActorID = actor
	return s.ordering.InsertLesson(ctx, in)
}

func (s *contentService) DeleteLesson(ctx context.Context, lessonID uuid.UUID) (domainagg.DeleteLessonResult, error) {
	actor, err := actorForWrite(ctx, "Content.Service.DeleteLesson")
	if err != nil {
		return domainagg.DeleteLessonResult{}, err
	}
	return s.ordering.DeleteLesson(ctx, domainagg.DeleteLessonInput{
		LessonID: lessonID,
		ActorID:  actor,
	})
}

func (s *contentService) MoveLesson(ctx context.Context, in domainagg.MoveLessonInput) (domainagg.MoveLessonResult, error) {
	actor, err := actorForWrite(ctx, "Content.Service.MoveLesson")
	if err != nil {
		return domainagg.MoveLessonResult{}, err
	}
	in.ActorID = actor
	return s.ordering.MoveLesson(ctx, in)
}

func (s *contentService) ReorderSection(ctx context.Context, in domainagg.ReorderSectionInput) (domainagg.ReorderSectionResult, error) {
	actor, err := actorForWrite(ctx, "Content.Service.ReorderSection")
	if err != nil {
		return domainagg.ReorderSectionResult{}, err
	}
	in.ActorID = actor
	return s.ordering.ReorderSection(ctx, in)
}

func (s *contentService) GetCourseOutline(ctx context.Context, courseID uuid.UUID) ([]SectionOutline, error) {
	const op = "Content.Service.GetCourseOutline"
	if courseID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}

	dbc := dbctx.Background(ctx)
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	if course == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "course not found", nil)
	}
	showHidden := rd.IsAdmin() || course.InstructorID == rd.UserID

	sections, err := s.sections.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	outline := make([]SectionOutline, 0, len(sections))
	for _, section := range sections {
		if section == nil {
			continue
		}
		rows, err := s.lessons.ListBySection(dbc, section.ID)
		if err != nil {
			return nil, mapServiceError(op, err)
		}
		lessons := make([]learning.Lesson, 0, len(rows))
		for _, row := range rows {
			if row == nil {
				continue
			}
			if !showHidden && !row.IsVisible {
				continue
			}
			lessons = append(lessons, *row)
		}
		outline = append(outline, SectionOutline{Section: *section, Lessons: lessons})
	}
	return outline, nil
}

// mapServiceError keeps already-coded errors intact and wraps raw
// infrastructure failures as internal.
func mapServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
