package seed

// Generation ranges.
const (
	minCapacity      = 30
	maxCapacity      = 200
	minScheduleItems = 2
	maxScheduleItems = 5
	tagsPerEvent     = 3
	firstHour        = 9
	lastHour         = 18
	seedStream       = 0x9e3779b97f4a7c15
	emailDomain      = "@campus.example"
)

var (
	departments = []string{"Computer", "Management", "Science", "Civil", "Mechanical", "Electrical"}
	years       = []string{"1", "2", "3", "4"}
	categories  = []string{"Technology", "Cultural", "Sports", "Academic", "Professional", "Workshop", "Seminar", "Competition"}
	titleWords  = []string{"Annual", "Intro to", "Advanced", "Spring", "Inter-college", "Hands-on", "Open"}
	topics      = []string{"ai", "cloud", "robotics", "music", "dance", "football", "design", "startups", "finance", "research", "coding", "art"}
	locations   = []string{"Main Auditorium", "Seminar Hall", "Lab 3", "Sports Ground", "Library", "Open Air Theatre"}
	activities  = []string{"Registration", "Opening talk", "Keynote", "Hands-on session", "Panel discussion", "Q&A", "Networking", "Closing remarks"}

	positiveComments = []string{
		"Great session, learned a lot",
		"Awesome speakers and good pace",
		"Loved the hands-on part",
		"Amazing organisation",
	}
	neutralComments = []string{
		"It was fine",
		"Okay overall, a bit long",
		"",
		"Average event",
	}
	negativeComments = []string{
		"Bad sound in the hall",
		"Worst timing possible",
		"Terrible queue at the entrance",
		"Poor planning",
	}
)
