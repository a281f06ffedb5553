package billing

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/school"
)

const (
	issuedTemplate  = "bill_issued"
	overdueTemplate = "bill_overdue"
)

// notice is the data of the guardian email templates.
type notice struct {
	GuardianName string
	StudentName  string
	Number       string
	Period       string
	Total        string
	Balance      string
	Currency     string
	DueDate      string
}

func (svc *Service) notifying() bool {
	return svc.mailSvc != nil && svc.conf.Billing.NotifyGuardians
}

func (svc *Service) newNotice(tmpl, subject string, bill Bill, student school.Student, period string) *core.EmailMessage {
	name := student.GuardianName
	if name == "" {
		name = "Parent/Guardian"
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: student.GuardianName, Address: student.GuardianEmail}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: notice{
			GuardianName: name,
			StudentName:  student.FullName(),
			Number:       bill.Number,
			Period:       period,
			Total:        bill.TotalAmount.StringFixed(2),
			Balance:      bill.Balance.StringFixed(2),
			Currency:     svc.conf.Billing.Currency,
			DueDate:      bill.DueDate.Format("02 Jan 2006"),
		},
	}
}

func periodName(period academic.Period) string {
	if period.Term != nil {
		return period.Year.Name + ", " + period.Term.Name
	}
	return period.Year.Name
}

// notifyIssued emails the new bills to the students' guardians.
func (svc *Service) notifyIssued(period academic.Period, bills []Bill, students map[string]school.Student) {
	if !svc.notifying() {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(bills))
	for _, bill := range bills {
		student, ok := students[bill.StudentID]
		if !ok || student.GuardianEmail == "" {
			continue
		}
		subject := fmt.Sprintf("%s: new bill %s", svc.conf.AppName, bill.Number)
		msgs = append(msgs, svc.newNotice(issuedTemplate, subject, bill, student, periodName(period)))
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

// notifyOverdue reminds the guardians of the bills that just became overdue.
func (svc *Service) notifyOverdue(ctx context.Context, bills []Bill) {
	if !svc.notifying() {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(bills))
	for _, bill := range bills {
		student, err := svc.directory.GetStudent(ctx, bill.StudentID)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("loading student %s of overdue bill %s", bill.StudentID, bill.Number), err)
			continue
		}
		if student.GuardianEmail == "" {
			continue
		}
		subject := fmt.Sprintf("%s: bill %s is overdue", svc.conf.AppName, bill.Number)
		msgs = append(msgs, svc.newNotice(overdueTemplate, subject, bill, student, ""))
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}
